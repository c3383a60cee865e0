package cmd

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/swr06/Lensing/log"
)

func TestSetModuleLevels(t *testing.T) {
	var buf bytes.Buffer
	log.SetSink(&buf)
	log.SetLevel(log.Notice)
	defer func() {
		log.SetSink(os.Stderr)
		log.SetLevel(log.Notice)
	}()

	if err := setModuleLevels([]string{"module test=debug", " quiet test = error "}); err != nil {
		t.Fatal(err)
	}

	log.New("module test").Debug("debug output")
	log.New("quiet test").Warning("warning output")
	log.New("other test").Debug("other output")

	out := buf.String()
	if !strings.Contains(out, "debug output") {
		t.Fatalf("expected debug message for overridden module; got %q", out)
	}
	if strings.Contains(out, "warning output") || strings.Contains(out, "other output") {
		t.Fatalf("expected messages below the module level to be dropped; got %q", out)
	}

	specs := []string{"debug", "=debug", "module test=loud"}
	for index, spec := range specs {
		if err := setModuleLevels([]string{spec}); err == nil {
			t.Fatalf("[spec %d] expected error for override %q", index, spec)
		}
	}
}
