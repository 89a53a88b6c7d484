// Package main implements wastrun, a driver for the WebAssembly spec test suite's script-command
// surface: module, register, invoke, get, assert_return, assert_trap, assert_malformed, and
// assert_invalid, run against a tinywasm.Runtime. assert_unlinkable is reported as skipped.
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: wastrun <script.wast>")
		os.Exit(2)
	}

	log, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	src, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatal("reading script", zap.Error(err))
	}

	rn := newRunner(log)
	if err := rn.run(string(src)); err != nil {
		log.Error("script failed", zap.Error(err))
		os.Exit(1)
	}
}
