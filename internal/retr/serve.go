package retr

import (
	"os"

	"github.com/infodancer/popd/internal/reactor"
)

// Serve streams path's contents through transformerCmd and
// bytestufferCmd into clientFD's outbound queue (spec.md §4.5 "Response
// framing"): `+OK\r\n` is enqueued before the splitter, `\r\n.\r\n` after
// it, so the ordering guarantee in internal/queue places the terminator
// strictly after every byte the pipeline produces. onDone is called
// exactly once, with any error the pipeline or its final stage reported,
// once the caller may consider the RETR complete.
func Serve(eng *reactor.Reactor, clientFD int, path, transformerCmd, bytestufferCmd string, onDone func(error)) {
	if _, err := os.Stat(path); err != nil {
		eng.Enqueue(clientFD, []byte("-ERR message unavailable\r\n"))
		if onDone != nil {
			onDone(err)
		}
		return
	}

	p, err := Start(path, transformerCmd, bytestufferCmd)
	if err != nil {
		eng.Enqueue(clientFD, []byte("-ERR message unavailable\r\n"))
		if onDone != nil {
			onDone(err)
		}
		return
	}

	eng.Enqueue(clientFD, []byte("+OK\r\n"))

	ok := eng.StreamFile(clientFD, p.ReadFD(), func(drainErr error) {
		p.Close()
		if onDone != nil {
			onDone(drainErr)
		}
	})
	if ok {
		eng.Enqueue(clientFD, []byte("\r\n.\r\n"))
	} else {
		// Client fd vanished between the -ERR/+OK check and here (the
		// reactor closed it concurrently); release the pipeline's fd
		// directly since no drain callback will ever fire for it.
		p.Close()
		if onDone != nil {
			onDone(nil)
		}
	}
}
