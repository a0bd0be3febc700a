// Command bgpdump decodes a raw stream of BGP-4 messages (e.g. captured
// off the wire) and prints them in human-readable form.
package main

import (
	"bytes"
	"flag"
	"io"
	"os"

	"github.com/golang/glog"

	"github.com/korsaris/libbgp/packet"
)

var (
	file = flag.String("file", "", "path to a file of raw BGP messages, defaults to stdin")
	is4b = flag.Bool("4b", true, "decode AS_PATH/AGGREGATOR as 4-byte ASNs")
)

func main() {
	flag.Parse()

	var r io.Reader = os.Stdin
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			glog.Exitf("unable to open %q: %v", *file, err)
		}
		defer f.Close()
		r = f
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		glog.Exitf("unable to read input: %v", err)
	}

	buf := bytes.NewBuffer(raw)
	dec := packet.NewDecoder(*is4b)

	for buf.Len() > 0 {
		msg, err := dec.Decode(buf)
		if err != nil {
			glog.Exitf("unable to decode BGP message: %v", err)
		}
		msg.Dump()
	}
}
