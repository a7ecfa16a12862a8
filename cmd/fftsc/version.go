package main

import (
	"context"
	"fmt"
	"io"
	"os"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=v1.0.0" ./cmd/fftsc/
var version = "dev"

func printVersion(w io.Writer) {
	fmt.Fprintln(w, version)
}

// runVersion prints the binary version, plus the schema version of the
// configured database when one exists. It never creates the database.
func (a *app) runVersion(ctx context.Context) error {
	printVersion(a.stdout)
	if _, err := os.Stat(a.cfg.DBPath); err != nil {
		return nil
	}
	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()
	v, err := st.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "schema v%d\n", v)
	return nil
}
