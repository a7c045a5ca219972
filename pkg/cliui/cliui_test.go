package cliui_test

import (
	"bytes"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/streamrelay/streamrelay/pkg/cliui"
)

var _ = Describe("cliui", func() {
	It("formats short and long durations", func() {
		Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
		Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})

	It("marks success and failure", func() {
		Expect(cliui.Mark(nil)).To(Equal(cliui.SuccessMark))
		Expect(cliui.Mark(errors.New("x"))).To(Equal(cliui.FailMark))
	})

	It("returns the step error", func() {
		boom := errors.New("boom")

		err := cliui.Step(GinkgoWriter, "setting quota", func() error { return boom })
		Expect(err).To(MatchError(boom))
	})

	It("ends with the result line once the step returns", func() {
		var buf bytes.Buffer
		err := cliui.Step(&buf, "fetching config", func() error {
			time.Sleep(200 * time.Millisecond)
			return nil
		})
		Expect(err).NotTo(HaveOccurred())

		out := buf.String()
		Expect(out).To(HavePrefix("\r  "))
		Expect(out).To(HaveSuffix("\n"))

		last := out[strings.LastIndex(out, "\r"):]
		Expect(last).To(ContainSubstring(cliui.SuccessMark + " fetching config"))
		Expect(strings.Count(out, "\n")).To(Equal(1))
	})

	It("does not treat a buffer as a terminal", func() {
		Expect(cliui.IsTerminal(&bytes.Buffer{})).To(BeFalse())
	})
})
