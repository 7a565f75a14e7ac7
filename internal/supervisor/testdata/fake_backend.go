package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Controllable backend process for supervisor tests. It can delay startup,
// refuse to listen, ignore SIGTERM or crash after a delay.
func main() {
	port := flag.Int("port", 0, "listen port")
	flag.String("m", "", "model path (accepted, unused)")
	flag.String("host", "127.0.0.1", "host (accepted, unused)")
	flag.Int("ngl", 0, "gpu layers (accepted, unused)")
	startupDelay := flag.Duration("startup-delay", 0, "delay before listening")
	ignoreSigterm := flag.Bool("ignore-sigterm", false, "swallow SIGTERM")
	exitAfter := flag.Duration("exit-after", 0, "crash with code 3 after this long")
	noListen := flag.Bool("no-listen", false, "never open the listen socket")
	flag.Parse()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		for range sigCh {
			if *ignoreSigterm {
				fmt.Fprintln(os.Stderr, "ignoring SIGTERM")
				continue
			}
			os.Exit(0)
		}
	}()

	if *exitAfter > 0 {
		go func() {
			time.Sleep(*exitAfter)
			fmt.Fprintln(os.Stderr, "simulated crash")
			os.Exit(3)
		}()
	}

	if *noListen {
		select {}
	}
	if *startupDelay > 0 {
		time.Sleep(*startupDelay)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	log.Fatal(http.ListenAndServe(fmt.Sprintf("127.0.0.1:%d", *port), mux))
}
