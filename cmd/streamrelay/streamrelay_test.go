package streamrelaycmder_test

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/streamrelay/streamrelay/api"
	streamrelaycmder "github.com/streamrelay/streamrelay/cmd/streamrelay"
	"github.com/streamrelay/streamrelay/pkg/cliui"
	"github.com/streamrelay/streamrelay/pkg/kv/inmemory"
	"github.com/streamrelay/streamrelay/pkg/logger"
	"github.com/streamrelay/streamrelay/pkg/quota"
	"github.com/streamrelay/streamrelay/pkg/quota/kvstore"
	"github.com/streamrelay/streamrelay/pkg/utils"
)

var _ = Describe("NewStreamRelayCmd", func() {
	var (
		configDir string
		out       *bytes.Buffer
	)

	execute := func(args ...string) error {
		cmd := streamrelaycmder.NewStreamRelayCmd()
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(append(args, "--config-dir", configDir))
		return cmd.Execute()
	}

	BeforeEach(func() {
		var err error
		configDir, err = os.MkdirTemp("", "streamrelay-cmd-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(configDir) })

		out = &bytes.Buffer{}
	})

	It("wires every top level command", func() {
		cmd := streamrelaycmder.NewStreamRelayCmd()
		names := []string{}
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("serve", "chat", "usage", "quota", "config", "init", "version"))
	})

	It("has relay and quota serve subcommands", func() {
		cmd := streamrelaycmder.NewStreamRelayCmd()
		serve, _, err := cmd.Find([]string{"serve"})
		Expect(err).NotTo(HaveOccurred())

		names := []string{}
		for _, sub := range serve.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ConsistOf("relay", "quota"))
	})

	It("prints the version", func() {
		Expect(execute("version")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Version: " + utils.Version))
	})

	Describe("quota", func() {
		var store *kvstore.Store

		BeforeEach(func() {
			driver := inmemory.NewDriver()
			store = kvstore.New(driver)

			server := api.NewServer(api.Config{Credential: "admin-secret"}, driver, logger.Nop())
			ts := httptest.NewServer(server.Handler())
			DeferCleanup(ts.Close)

			t := GinkgoT()
			t.Setenv("STREAMRELAY_CLIENT_QUOTA_TARGET", ts.URL)
			t.Setenv("STREAMRELAY_QUOTA_CREDENTIAL", "admin-secret")
		})

		It("grants, shows and charges quota", func() {
			Expect(execute("quota", "set", "tok-1", "3")).To(Succeed())
			Expect(out.String()).To(ContainSubstring(cliui.SuccessMark + " Setting quota for tok-1"))

			rec, err := store.Get(context.Background(), "tok-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Remaining).To(Equal(int64(3)))

			out.Reset()
			Expect(execute("quota", "decr", "tok-1")).To(Succeed())
			Expect(out.String()).To(ContainSubstring(cliui.SuccessMark + " Charging tok-1"))
			out.Reset()
			Expect(execute("quota", "get", "tok-1")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("2"))
		})

		It("honours --nx", func() {
			Expect(store.Set(context.Background(), "tok-1", 9, quota.SetOptions{})).To(Succeed())

			Expect(execute("quota", "set", "tok-1", "3", "--nx")).To(Succeed())

			rec, err := store.Get(context.Background(), "tok-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Remaining).To(Equal(int64(9)))
		})

		It("rejects a non numeric count", func() {
			Expect(execute("quota", "set", "tok-1", "lots")).To(MatchError(ContainSubstring("invalid count")))
		})

		It("rejects --nx with --xx", func() {
			Expect(execute("quota", "set", "tok-1", "3", "--nx", "--xx")).To(HaveOccurred())
		})

		It("fails for a token without quota", func() {
			Expect(execute("quota", "get", "nobody")).To(HaveOccurred())
		})
	})
})
