// Command bizsync syncs a bulk JSON dump of business records into a
// relational store.
//
//	bizsync sync   --input data/data.json --driver postgres
//	bizsync check  [--print-ddl]
//	bizsync env-init
//
// Settings come from .env.local, the environment and flags, in increasing
// order of precedence.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	// register all store backends with the storage factory.
	_ "bizsync/internal/storage/all"
)

const envFile = ".env.local"

func main() {
	// A missing .env.local is fine; variables already set in the
	// environment win over the file.
	_ = godotenv.Load(envFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Getenv, os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
