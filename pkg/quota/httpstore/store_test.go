package httpstore_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/streamrelay/streamrelay/pkg/quota"
	"github.com/streamrelay/streamrelay/pkg/quota/httpstore"
)

type recorded struct {
	method string
	path   string
	auth   string
	body   string
}

var _ = Describe("Store", func() {
	var (
		server   *httptest.Server
		requests []recorded
		respond  func(w http.ResponseWriter, r *http.Request)
		store    *httpstore.Store
		ctx      context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		requests = nil
		respond = func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"code":1,"data":5}`))
		}

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			requests = append(requests, recorded{
				method: r.Method,
				path:   r.URL.EscapedPath(),
				auth:   r.Header.Get("Authorization"),
				body:   string(body),
			})
			w.Header().Set("Content-Type", "application/json")
			respond(w, r)
		}))

		var err error
		store, err = httpstore.New(httpstore.Config{BaseURL: server.URL + "/", Credential: "svc-secret"})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	It("requires a base URL", func() {
		_, err := httpstore.New(httpstore.Config{})
		Expect(err).To(HaveOccurred())
	})

	Describe("Get", func() {
		It("reads a numeric record", func() {
			rec, err := store.Get(ctx, "tok")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec).To(Equal(quota.Record{Token: "tok", Remaining: 5}))

			Expect(requests).To(HaveLen(1))
			Expect(requests[0].method).To(Equal(http.MethodGet))
			Expect(requests[0].path).To(Equal("/quota/tok"))
			Expect(requests[0].auth).To(Equal("Bearer svc-secret"))
		})

		It("reads a string record", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"code":1,"data":"12"}`))
			}
			rec, err := store.Get(ctx, "tok")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Remaining).To(Equal(int64(12)))
		})

		It("escapes the token in the path", func() {
			_, _ = store.Get(ctx, "a/b c")
			Expect(requests[0].path).To(Equal("/quota/a%2Fb%20c"))
		})

		It("maps code 0 to ErrNoRecord", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"code":0,"message":"not found"}`))
			}
			_, err := store.Get(ctx, "tok")
			Expect(err).To(MatchError(quota.ErrNoRecord))
		})

		It("maps null data to ErrNoRecord", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"code":1,"data":null}`))
			}
			_, err := store.Get(ctx, "tok")
			Expect(err).To(MatchError(quota.ErrNoRecord))
		})

		It("fails on malformed bodies", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`<html>`))
			}
			_, err := store.Get(ctx, "tok")
			Expect(err).To(MatchError(ContainSubstring("decoding quota response")))
		})

		It("fails on non-numeric data", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"code":1,"data":"lots"}`))
			}
			_, err := store.Get(ctx, "tok")
			Expect(err).To(MatchError(quota.ErrMalformed))
		})

		It("fails on server errors", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			}
			_, err := store.Get(ctx, "tok")
			Expect(err).To(MatchError(ContainSubstring("status 500")))
		})

		It("fails when the service rejects the credential", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"code":0,"message":"unauthorized"}`))
			}
			_, err := store.Get(ctx, "tok")
			Expect(err).To(MatchError(ContainSubstring("status 401")))
			Expect(err).NotTo(MatchError(quota.ErrNoRecord))
		})

		It("fails when the service is unreachable", func() {
			server.Close()
			_, err := store.Get(ctx, "tok")
			Expect(err).To(MatchError(ContainSubstring("calling quota service")))
		})
	})

	Describe("Set", func() {
		It("posts the value and options", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"code":1,"data":"OK"}`))
			}
			err := store.Set(ctx, "tok", 20, quota.SetOptions{EX: 60, NX: true})
			Expect(err).NotTo(HaveOccurred())

			Expect(requests[0].method).To(Equal(http.MethodPost))
			Expect(requests[0].path).To(Equal("/quota/tok"))

			var body map[string]any
			Expect(json.Unmarshal([]byte(requests[0].body), &body)).To(Succeed())
			Expect(body).To(HaveKeyWithValue("value", BeNumerically("==", 20)))
			Expect(body["options"]).To(HaveKeyWithValue("ex", BeNumerically("==", 60)))
			Expect(body["options"]).To(HaveKeyWithValue("nx", true))
		})

		It("returns an error for a failure envelope", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"code":0,"message":"bad value"}`))
			}
			Expect(store.Set(ctx, "tok", 1, quota.SetOptions{})).To(MatchError(ContainSubstring("bad value")))
		})
	})

	Describe("Decrement", func() {
		It("posts to the decr endpoint", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"code":1,"data":4}`))
			}
			rec, err := store.Decrement(ctx, "tok")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Remaining).To(Equal(int64(4)))
			Expect(requests[0].method).To(Equal(http.MethodPost))
			Expect(requests[0].path).To(Equal("/quota/tok/decr"))
		})
	})
})
