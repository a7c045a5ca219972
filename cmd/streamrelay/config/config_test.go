package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	configcmder "github.com/streamrelay/streamrelay/cmd/streamrelay/config"
)

var _ = Describe("NewConfigCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := configcmder.NewConfigCmd()
		Expect(cmd.Use).To(Equal("config"))
	})

	It("has set, get, and list subcommands", func() {
		cmd := configcmder.NewConfigCmd()
		cmds := cmd.Commands()
		subcommands := make([]string, 0, len(cmds))
		for _, sub := range cmds {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		tmpDir  string
		origDir string
		out     *bytes.Buffer
	)

	execute := func(args ...string) error {
		cmd := configcmder.NewConfigCmd()
		cmd.SetOut(out)
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "streamrelay-config-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		// Create a local .streamrelay dir so the manager picks it up
		err = os.MkdirAll(filepath.Join(tmpDir, ".streamrelay"), 0o755)
		Expect(err).NotTo(HaveOccurred())

		err = os.Chdir(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		out = &bytes.Buffer{}
	})

	AfterEach(func() {
		err := os.Chdir(origDir)
		Expect(err).NotTo(HaveOccurred())
		os.RemoveAll(tmpDir)
	})

	Describe("set subcommand", func() {
		It("sets a config value successfully", func() {
			err := execute("set", "relay.upstream", "http://localhost:11434")
			Expect(err).NotTo(HaveOccurred())

			_, err = os.Stat(filepath.Join(tmpDir, ".streamrelay", "config.toml"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects unknown keys", func() {
			Expect(execute("set", "invalid_key", "value")).To(HaveOccurred())
		})

		It("requires exactly two arguments", func() {
			Expect(execute("set", "relay.upstream")).To(HaveOccurred())
		})

		It("rejects zero arguments", func() {
			Expect(execute("set")).To(HaveOccurred())
		})

		It("rejects invalid uint values", func() {
			Expect(execute("set", "relay.workers", "not-a-number")).To(HaveOccurred())
		})

		It("rejects invalid durations", func() {
			Expect(execute("set", "client.timeout", "soon")).To(HaveOccurred())
		})

		It("does not echo secrets", func() {
			Expect(execute("set", "relay.api_key", "sk-supersecret")).To(Succeed())
			Expect(out.String()).NotTo(ContainSubstring("sk-supersecret"))
			Expect(out.String()).To(ContainSubstring("****cret"))
		})
	})

	Describe("get subcommand", func() {
		It("gets a previously set value", func() {
			Expect(execute("set", "relay.upstream", "http://localhost:11434")).To(Succeed())

			out.Reset()
			Expect(execute("get", "relay.upstream")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("http://localhost:11434"))
		})

		It("masks secrets unless asked to reveal them", func() {
			Expect(execute("set", "client.access_token", "tok-abcdef")).To(Succeed())

			out.Reset()
			Expect(execute("get", "client.access_token")).To(Succeed())
			Expect(out.String()).NotTo(ContainSubstring("tok-abcdef"))

			out.Reset()
			Expect(execute("get", "client.access_token", "--reveal")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("tok-abcdef"))
		})

		It("runs without error for unset key", func() {
			Expect(execute("get", "quota.url")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("<not set>"))
		})

		It("rejects unknown keys", func() {
			Expect(execute("get", "invalid_key")).To(HaveOccurred())
		})

		It("requires exactly one argument", func() {
			Expect(execute("get")).To(HaveOccurred())
		})
	})

	Describe("list subcommand", func() {
		It("runs without error when no config exists", func() {
			Expect(execute("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("relay.listen"))
		})

		It("lists set values with secrets masked", func() {
			Expect(execute("set", "relay.upstream", "http://localhost:11434")).To(Succeed())
			Expect(execute("set", "quota.credential", "admin-secret")).To(Succeed())

			out.Reset()
			Expect(execute("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring(`"http://localhost:11434"`))
			Expect(out.String()).NotTo(ContainSubstring("admin-secret"))
		})

		It("rejects any arguments", func() {
			Expect(execute("list", "extra")).To(HaveOccurred())
		})
	})
})
