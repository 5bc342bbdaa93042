//go:build js && wasm

// Command reporter is the browser motion reporter, built with
// GOOS=js GOARCH=wasm and loaded by the relay's index page.
package main

import (
	"log/slog"
	"os"
	"syscall/js"

	"github.com/alfredjeanlab/motionrelay/internal/reporter"
	"github.com/alfredjeanlab/motionrelay/internal/reporter/browser"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	document := js.Global().Get("document")
	origin := js.Global().Get("location").Get("origin").String()

	r := reporter.New(
		browser.NewPlatform(),
		browser.NewView(document),
		reporter.NewHTTPSender(origin, nil),
		reporter.WithLogger(logger),
	)
	browser.OnReady(document, r.Initialize)

	select {}
}
