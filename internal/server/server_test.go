package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"egl-chat-backend/internal/config"
	"egl-chat-backend/internal/relay"
	"egl-chat-backend/internal/types"
)

type fakeLocal struct {
	calls     atomic.Int32
	lastModel atomic.Value
	reply     string
	err       error
}

func (f *fakeLocal) Generate(_ context.Context, _ string, model string) (string, error) {
	f.calls.Add(1)
	f.lastModel.Store(model)
	return f.reply, f.err
}

type fakeHosted struct {
	calls       atomic.Int32
	lastMessage atomic.Value
	reply       string
	err         error
	panics      bool
}

func (f *fakeHosted) Complete(_ context.Context, message string) (string, error) {
	f.calls.Add(1)
	f.lastMessage.Store(message)
	if f.panics {
		panic("hosted backend exploded")
	}
	return f.reply, f.err
}

type fakeProbe struct {
	installed bool
	err       error
}

func (f fakeProbe) HasModel(context.Context, string) (bool, error) {
	return f.installed, f.err
}

func testConfig() config.Config {
	return config.Config{
		Port:            "0",
		AllowedOrigins:  []string{"http://localhost:3000", "http://127.0.0.1:3001"},
		AnthropicAPIKey: "sk-ant-test",
		AnthropicModel:  "claude-3-haiku-20240307",
	}
}

func do(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(rec *httptest.ResponseRecorder) types.ErrorResponse {
	var e types.ErrorResponse
	ExpectWithOffset(1, json.Unmarshal(rec.Body.Bytes(), &e)).To(Succeed())
	return e
}

var _ = Describe("Server", func() {
	var (
		local  *fakeLocal
		hosted *fakeHosted
		probe  LocalProbe
		cfg    config.Config
		h      http.Handler
	)

	BeforeEach(func() {
		local = &fakeLocal{reply: "local says hi"}
		hosted = &fakeHosted{reply: "Hi there!"}
		probe = fakeProbe{installed: true}
		cfg = testConfig()
	})

	JustBeforeEach(func() {
		d := relay.NewDispatcher(local, hosted, nil)
		h = NewServer(cfg, d, WithLocalProbe(probe)).Router()
	})

	Describe("GET /", func() {
		It("identifies the API", func() {
			rec := do(h, http.MethodGet, "/", "", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(MatchJSON(`{"message":"Engineer Growth Lab API"}`))
		})
	})

	Describe("POST /chat", func() {
		It("relays hosted completions verbatim", func() {
			rec := do(h, http.MethodPost, "/chat", `{"message":"hello","model":"claude-3-haiku"}`, nil)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))
			Expect(rec.Body.String()).To(MatchJSON(`{"response":"Hi there!"}`))
			Expect(hosted.calls.Load()).To(BeEquivalentTo(1))
			Expect(hosted.lastMessage.Load()).To(Equal("hello"))
			Expect(local.calls.Load()).To(BeZero())
		})

		It("routes the local model to the local backend only", func() {
			rec := do(h, http.MethodPost, "/chat", `{"message":"explain goroutines","model":"deepseek-r1:1.5b"}`, nil)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(MatchJSON(`{"response":"local says hi"}`))
			Expect(local.calls.Load()).To(BeEquivalentTo(1))
			Expect(local.lastModel.Load()).To(Equal("deepseek-r1:1.5b"))
			Expect(hosted.calls.Load()).To(BeZero())
		})

		It("accepts a trailing newline after the body", func() {
			rec := do(h, http.MethodPost, "/chat", "{\"message\":\"hello\",\"model\":\"claude-3-haiku\"}\n", nil)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(hosted.calls.Load()).To(BeEquivalentTo(1))
		})

		It("returns identical responses for identical requests", func() {
			body := `{"message":"hello","model":"claude-3-haiku"}`
			first := do(h, http.MethodPost, "/chat", body, nil)
			second := do(h, http.MethodPost, "/chat", body, nil)

			Expect(first.Code).To(Equal(second.Code))
			Expect(first.Body.String()).To(Equal(second.Body.String()))
			Expect(hosted.calls.Load()).To(BeEquivalentTo(2))
		})

		DescribeTable("rejects invalid requests without calling a backend",
			func(body, wantDetail string) {
				rec := do(h, http.MethodPost, "/chat", body, nil)

				Expect(rec.Code).To(Equal(http.StatusBadRequest))
				e := decodeError(rec)
				Expect(e.Status).To(Equal(http.StatusBadRequest))
				Expect(e.Detail).To(ContainSubstring(wantDetail))
				Expect(local.calls.Load()).To(BeZero())
				Expect(hosted.calls.Load()).To(BeZero())
			},
			Entry("unknown model", `{"message":"hello","model":"gpt-4"}`, `Unsupported model: model "gpt-4", expected one of deepseek-r1:1.5b, claude-3-haiku`),
			Entry("missing model", `{"message":"hello"}`, "Unsupported model"),
			Entry("blank message", `{"message":"   ","model":"claude-3-haiku"}`, "message is required"),
			Entry("malformed JSON", `{"message":`, "invalid JSON body"),
			Entry("trailing garbage", `{"message":"hi","model":"claude-3-haiku"} garbage`, "invalid JSON body"),
			Entry("two JSON objects", `{"message":"hi","model":"claude-3-haiku"}{"message":"again","model":"claude-3-haiku"}`, "invalid JSON body"),
			Entry("oversized body", `{"message":"`+strings.Repeat("a", maxBodyBytes)+`","model":"claude-3-haiku"}`, "too large"),
		)

		Context("when the local server refuses connections", func() {
			BeforeEach(func() {
				local.err = &relay.Error{Kind: relay.KindUnavailable, Backend: relay.BackendOllama, Err: errors.New("connection refused")}
			})

			It("returns 503", func() {
				rec := do(h, http.MethodPost, "/chat", `{"message":"hello","model":"deepseek-r1:1.5b"}`, nil)

				Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
				Expect(decodeError(rec)).To(Equal(types.ErrorResponse{
					Status: http.StatusServiceUnavailable,
					Detail: "Unable to connect to the model service. Please make sure it is running.",
				}))
			})
		})

		Context("when the local server times out", func() {
			BeforeEach(func() {
				local.err = &relay.Error{Kind: relay.KindTimeout, Backend: relay.BackendOllama, Err: context.DeadlineExceeded}
			})

			It("returns 504", func() {
				rec := do(h, http.MethodPost, "/chat", `{"message":"hello","model":"deepseek-r1:1.5b"}`, nil)

				Expect(rec.Code).To(Equal(http.StatusGatewayTimeout))
				Expect(decodeError(rec).Detail).To(HavePrefix("Request timed out"))
			})
		})

		Context("when the hosted API fails", func() {
			BeforeEach(func() {
				hosted.err = &relay.Error{Kind: relay.KindCallFailed, Backend: relay.BackendClaude, Err: errors.New("overloaded")}
			})

			It("returns 500 with the failure text", func() {
				rec := do(h, http.MethodPost, "/chat", `{"message":"hello","model":"claude-3-haiku"}`, nil)

				Expect(rec.Code).To(Equal(http.StatusInternalServerError))
				Expect(decodeError(rec)).To(Equal(types.ErrorResponse{
					Status: http.StatusInternalServerError,
					Detail: "Claude API error: overloaded",
				}))
			})
		})

		Context("when a backend panics", func() {
			BeforeEach(func() {
				hosted.panics = true
			})

			It("answers with a JSON 500", func() {
				rec := do(h, http.MethodPost, "/chat", `{"message":"hello","model":"claude-3-haiku"}`, nil)

				Expect(rec.Code).To(Equal(http.StatusInternalServerError))
				e := decodeError(rec)
				Expect(e.Detail).To(Equal("Internal server error"))
				Expect(rec.Body.String()).NotTo(ContainSubstring("exploded"))
			})
		})
	})

	Describe("OPTIONS /chat", func() {
		It("answers a bare OPTIONS with permissive headers and no body", func() {
			rec := do(h, http.MethodOptions, "/chat", "", nil)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.Len()).To(BeZero())
			Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("*"))
			Expect(rec.Header().Get("Access-Control-Allow-Methods")).To(Equal("POST, OPTIONS"))
			Expect(rec.Header().Get("Access-Control-Allow-Headers")).To(Equal("Content-Type"))
		})

		It("allows browser preflights from the frontend origins", func() {
			rec := do(h, http.MethodOptions, "/chat", "", map[string]string{
				"Origin":                         "http://localhost:3000",
				"Access-Control-Request-Method":  "POST",
				"Access-Control-Request-Headers": "Content-Type",
			})

			Expect(rec.Code).To(BeNumerically("<", 300))
			Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("http://localhost:3000"))
			Expect(rec.Header().Get("Access-Control-Allow-Credentials")).To(Equal("true"))
			Expect(hosted.calls.Load()).To(BeZero())
		})

		It("does not grant unknown origins", func() {
			rec := do(h, http.MethodOptions, "/chat", "", map[string]string{
				"Origin":                        "http://evil.example.com",
				"Access-Control-Request-Method": "POST",
			})

			Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
		})
	})

	It("echoes an allowed origin on actual requests", func() {
		rec := do(h, http.MethodPost, "/chat", `{"message":"hello","model":"claude-3-haiku"}`, map[string]string{
			"Origin": "http://127.0.0.1:3001",
		})

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("http://127.0.0.1:3001"))
	})

	Describe("GET /health", func() {
		It("reports ok when both backends are usable", func() {
			rec := do(h, http.MethodGet, "/health", "", nil)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var got types.HealthResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &got)).To(Succeed())
			Expect(got.Status).To(Equal("ok"))
			Expect(got.Local).To(Equal(types.LocalHealth{Reachable: true, Model: "deepseek-r1:1.5b", ModelInstalled: true}))
			Expect(got.Hosted).To(Equal(types.HostedHealth{Configured: true, Model: "claude-3-haiku-20240307"}))
		})

		Context("when the local server is down", func() {
			BeforeEach(func() {
				probe = fakeProbe{err: &relay.Error{Kind: relay.KindUnavailable, Backend: relay.BackendOllama, Err: errors.New("dial tcp: connection refused")}}
			})

			It("reports degraded with the reason", func() {
				rec := do(h, http.MethodGet, "/health", "", nil)

				var got types.HealthResponse
				Expect(json.Unmarshal(rec.Body.Bytes(), &got)).To(Succeed())
				Expect(got.Status).To(Equal("degraded"))
				Expect(got.Local.Reachable).To(BeFalse())
				Expect(got.Local.Error).To(HavePrefix("Unable to connect"))
			})
		})

		Context("when the local model is not pulled", func() {
			BeforeEach(func() {
				probe = fakeProbe{installed: false}
			})

			It("reports degraded", func() {
				rec := do(h, http.MethodGet, "/health", "", nil)

				var got types.HealthResponse
				Expect(json.Unmarshal(rec.Body.Bytes(), &got)).To(Succeed())
				Expect(got.Status).To(Equal("degraded"))
				Expect(got.Local.Reachable).To(BeTrue())
				Expect(got.Local.ModelInstalled).To(BeFalse())
			})
		})

		Context("without an Anthropic key", func() {
			BeforeEach(func() {
				cfg.AnthropicAPIKey = ""
			})

			It("reports degraded", func() {
				rec := do(h, http.MethodGet, "/health", "", nil)

				var got types.HealthResponse
				Expect(json.Unmarshal(rec.Body.Bytes(), &got)).To(Succeed())
				Expect(got.Status).To(Equal("degraded"))
				Expect(got.Hosted.Configured).To(BeFalse())
			})
		})
	})
})
