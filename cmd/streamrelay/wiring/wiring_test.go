package wiring_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"

	"github.com/streamrelay/streamrelay/cmd/streamrelay/wiring"
	"github.com/streamrelay/streamrelay/pkg/config"
	"github.com/streamrelay/streamrelay/pkg/eventstream/kafka"
	"github.com/streamrelay/streamrelay/pkg/eventstream/nop"
	"github.com/streamrelay/streamrelay/pkg/logger"
	"github.com/streamrelay/streamrelay/pkg/quota"
	"github.com/streamrelay/streamrelay/pkg/quota/httpstore"
	"github.com/streamrelay/streamrelay/pkg/quota/kvstore"
)

var _ = Describe("wiring", func() {
	var (
		tmpDir string
		v      *viper.Viper
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "wiring-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(tmpDir) })

		v, err = config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("ResolveStoreTarget", func() {
		It("keeps an explicit target", func() {
			Expect(wiring.ResolveStoreTarget("redis", " localhost:6379 ", tmpDir)).To(Equal("localhost:6379"))
		})

		It("needs no target for the memory store", func() {
			Expect(wiring.ResolveStoreTarget("memory", "", tmpDir)).To(BeEmpty())
		})

		It("places file backed stores in the config directory", func() {
			Expect(wiring.ResolveStoreTarget("bolt", "", tmpDir)).To(Equal(filepath.Join(tmpDir, "quota.bolt")))
			Expect(wiring.ResolveStoreTarget("sqlite", "", tmpDir)).To(Equal(filepath.Join(tmpDir, "quota.sqlite")))
		})

		It("requires a target for network stores", func() {
			_, err := wiring.ResolveStoreTarget("postgres", "", tmpDir)
			Expect(err).To(MatchError(ContainSubstring("quota.target is required")))
		})
	})

	Describe("OpenQuotaStore", func() {
		It("opens a local store by default", func() {
			store, closeStore, err := wiring.OpenQuotaStore(context.Background(), v, tmpDir, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(closeStore)
			Expect(store).To(BeAssignableToTypeOf(&kvstore.Store{}))

			Expect(store.Set(context.Background(), "tok", 2, quota.SetOptions{})).To(Succeed())
			rec, err := store.Get(context.Background(), "tok")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Remaining).To(Equal(int64(2)))
		})

		It("opens a bolt store in the config directory", func() {
			v.Set("quota.provider", "bolt")

			_, closeStore, err := wiring.OpenQuotaStore(context.Background(), v, tmpDir, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(closeStore)
			Expect(filepath.Join(tmpDir, "quota.bolt")).To(BeAnExistingFile())
		})

		It("uses the remote quota service when a URL is configured", func() {
			v.Set("quota.url", "http://quota.internal:8081")

			store, _, err := wiring.OpenQuotaStore(context.Background(), v, tmpDir, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(store).To(BeAssignableToTypeOf(&httpstore.Store{}))
		})
	})

	Describe("NewPublisher", func() {
		It("defaults to the nop publisher", func() {
			pub, err := wiring.NewPublisher(v)
			Expect(err).NotTo(HaveOccurred())
			Expect(pub).To(BeAssignableToTypeOf(&nop.Publisher{}))
		})

		It("builds a kafka publisher", func() {
			v.Set("events.provider", "kafka")
			v.Set("events.brokers", "kafka-1:9092, kafka-2:9092")

			pub, err := wiring.NewPublisher(v)
			Expect(err).NotTo(HaveOccurred())
			Expect(pub).To(BeAssignableToTypeOf(&kafka.Publisher{}))
			Expect(pub.Close()).To(Succeed())
		})

		It("rejects kafka without brokers", func() {
			v.Set("events.provider", "kafka")
			_, err := wiring.NewPublisher(v)
			Expect(err).To(MatchError(kafka.ErrNoBrokers))
		})

		It("rejects unknown providers", func() {
			v.Set("events.provider", "sqs")
			_, err := wiring.NewPublisher(v)
			Expect(err).To(HaveOccurred())
		})
	})

	It("maps the relay section", func() {
		v.Set("relay.api_key", "sk-test")
		v.Set("relay.timeout", "90s")

		cfg := wiring.RelayConfig(v)
		Expect(cfg.ListenAddr).To(Equal(":8080"))
		Expect(cfg.UpstreamURL).To(Equal("https://api.openai.com"))
		Expect(cfg.APIKey).To(Equal("sk-test"))
		Expect(cfg.Timeout).To(Equal(90 * time.Second))
		Expect(cfg.Workers).To(Equal(uint(3)))
	})

	It("falls back to the provider key variable for the upstream key", func() {
		GinkgoT().Setenv(wiring.UpstreamKeyEnv, "sk-from-env")
		Expect(wiring.RelayConfig(v).APIKey).To(Equal("sk-from-env"))

		v.Set("relay.api_key", "sk-configured")
		Expect(wiring.RelayConfig(v).APIKey).To(Equal("sk-configured"))
	})

	It("builds a chat client from the client section", func() {
		client, err := wiring.NewChatClient(v, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(client).NotTo(BeNil())
	})

	It("splits comma separated lists", func() {
		Expect(wiring.SplitList(" a, ,b ,")).To(Equal([]string{"a", "b"}))
		Expect(wiring.SplitList("")).To(BeEmpty())
	})
})
