// File: cmd/hioload-dgram/banner.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/momentics/hioload-dgram/control"
	"github.com/momentics/hioload-dgram/server"
)

var (
	bannerTitle = color.New(color.FgCyan, color.Bold)
	bannerAddr  = color.New(color.FgGreen)
	bannerNote  = color.New(color.FgYellow)
)

// printBanner writes a short human summary to w when it is a terminal; the
// structured log carries the same facts for everything else.
func printBanner(w io.Writer, cfg *control.Config, s *server.Server) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return
	}
	bannerTitle.Fprintf(w, "hioload-dgram")
	fmt.Fprintf(w, " %s/%s, queue %d, max datagram %d bytes\n",
		cfg.Backend, cfg.Mode, cfg.MaxOutgoingMessages, cfg.MaxMessageSize)
	for i, addr := range s.Addrs() {
		fmt.Fprintf(w, "  token %d  ", i)
		bannerAddr.Fprintln(w, addr.String())
	}
	if t := s.Timer(); t != nil {
		bannerNote.Fprintf(w, "  timer every %s\n", t.Interval())
	}
}
