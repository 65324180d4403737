//go:build !integration

package fal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"genstudio-backend/internal/domain"
	"genstudio-backend/internal/domain/ports/vendor"
)

// fakeFal captures the last request against a stubbed fal endpoint.
type fakeFal struct {
	srv     *httptest.Server
	path    string
	auth    string
	payload map[string]any
	status  int
	body    string
}

func newFakeFal(t *testing.T, body string) *fakeFal {
	t.Helper()
	f := &fakeFal{status: http.StatusOK, body: body}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.path = r.URL.Path
		f.auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&f.payload)
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(f.body))
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeFal) client(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient("test-key", f.srv.URL, false, testLogger())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestClient(t *testing.T) {
	t.Run("missing key is a configuration error", func(t *testing.T) {
		_, err := NewClient("", "", false, testLogger())
		var ce *domain.ConfigurationError
		if !errors.As(err, &ce) {
			t.Fatalf("want configuration error, got %v", err)
		}
	})

	t.Run("sends Key auth header", func(t *testing.T) {
		f := newFakeFal(t, `{"images":[{"url":"u"}]}`)
		_, err := NewImagen4Adapter(f.client(t)).Generate(context.Background(), vendor.ImageRequest{Prompt: "p"})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if f.auth != "Key test-key" {
			t.Errorf("want Key auth scheme, got %q", f.auth)
		}
	})

	t.Run("non-2xx becomes a vendor error", func(t *testing.T) {
		f := newFakeFal(t, `{"detail":"rate limited"}`)
		f.status = http.StatusTooManyRequests
		_, err := NewImagen4Adapter(f.client(t)).Generate(context.Background(), vendor.ImageRequest{Prompt: "p"})
		var ve *domain.VendorError
		if !errors.As(err, &ve) {
			t.Fatalf("want vendor error, got %v", err)
		}
		if ve.StatusCode != http.StatusTooManyRequests || ve.Vendor != "fal" {
			t.Errorf("bad vendor error: %+v", ve)
		}
	})
}

func TestImagen4Clamps(t *testing.T) {
	f := newFakeFal(t, `{"images":[{"url":"u"}]}`)
	a := NewImagen4Adapter(f.client(t))

	_, err := a.Generate(context.Background(), vendor.ImageRequest{
		Prompt:       "p",
		AspectRatio:  "13:37",
		NumImages:    9,
		Resolution:   "8K",
		OutputFormat: "bmp",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if f.path != "/fal-ai/imagen4/preview" {
		t.Errorf("wrong endpoint %q", f.path)
	}
	if f.payload["aspect_ratio"] != "1:1" {
		t.Errorf("unknown ratio must fall back, got %v", f.payload["aspect_ratio"])
	}
	if f.payload["num_images"] != float64(4) {
		t.Errorf("num_images must clamp to 4, got %v", f.payload["num_images"])
	}
	if f.payload["resolution"] != "1K" || f.payload["output_format"] != "png" {
		t.Errorf("enum fallbacks wrong: %v", f.payload)
	}
}

func TestClampNumImages(t *testing.T) {
	for in, want := range map[int]int{-1: 1, 0: 1, 1: 1, 4: 4, 5: 4} {
		if got := clampNumImages(in); got != want {
			t.Errorf("clampNumImages(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestImageResponseSeedFallback(t *testing.T) {
	f := newFakeFal(t, `{"images":[{"url":"a"},{"url":"b","seed":7}],"seed":99}`)
	results, err := NewImagen4Adapter(f.client(t)).Generate(context.Background(), vendor.ImageRequest{Prompt: "p"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("want 2 results, got %d", len(results))
	}
	if results[0].Seed == nil || *results[0].Seed != 99 {
		t.Errorf("first image must inherit the top-level seed, got %v", results[0].Seed)
	}
	if results[1].Seed == nil || *results[1].Seed != 7 {
		t.Errorf("per-image seed must win, got %v", results[1].Seed)
	}
}

func TestNanoBananaEditRequiresImages(t *testing.T) {
	f := newFakeFal(t, `{"images":[{"url":"u"}]}`)
	a := NewNanoBananaEditAdapter(f.client(t), NewNormalizer(0, testLogger()))

	_, err := a.Generate(context.Background(), vendor.ImageRequest{Prompt: "p"})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want validation error, got %v", err)
	}

	results, err := a.Generate(context.Background(), vendor.ImageRequest{
		Prompt:    "p",
		ImageURLs: []string{"https://cdn.example.com/a.png"},
	})
	if err != nil || len(results) != 1 {
		t.Fatalf("want success with one image, got %v, %v", results, err)
	}
	if f.path != "/fal-ai/nano-banana-pro/edit" {
		t.Errorf("wrong endpoint %q", f.path)
	}
}

func TestGemini3ProEditReferenceFallback(t *testing.T) {
	f := newFakeFal(t, `{"images":[{"url":"u"}]}`)
	a := NewGemini3ProEditAdapter(f.client(t), NewNormalizer(0, testLogger()))

	_, err := a.Generate(context.Background(), vendor.ImageRequest{
		Prompt:            "p",
		ReferenceImageURL: "https://cdn.example.com/ref.png",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	urls, ok := f.payload["image_urls"].([]any)
	if !ok || len(urls) != 1 || urls[0] != "https://cdn.example.com/ref.png" {
		t.Errorf("reference must become a one-element list, got %v", f.payload["image_urls"])
	}

	_, err = a.Generate(context.Background(), vendor.ImageRequest{Prompt: "p"})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want validation error without any image, got %v", err)
	}
}

func TestKlingMaskURL(t *testing.T) {
	t.Run("private mask is rejected before dispatch", func(t *testing.T) {
		f := newFakeFal(t, `{"images":[{"url":"u"}]}`)
		a := NewKlingAdapter(f.client(t), NewNormalizer(0, testLogger()))

		_, err := a.Generate(context.Background(), vendor.ImageRequest{
			Prompt:  "p",
			MaskURL: "http://127.0.0.1/mask.png",
		})
		var ue *domain.UnreachableResourceError
		if !errors.As(err, &ue) {
			t.Fatalf("want unreachable resource error, got %v", err)
		}
		if ue.URL != "http://127.0.0.1/mask.png" || ue.Label != "mask_url" {
			t.Errorf("error must name the URL: %+v", ue)
		}
		if f.path != "" {
			t.Errorf("no request may reach the vendor, got %q", f.path)
		}
	})

	t.Run("public mask is forwarded", func(t *testing.T) {
		f := newFakeFal(t, `{"images":[{"url":"u"}]}`)
		a := NewKlingAdapter(f.client(t), NewNormalizer(0, testLogger()))

		_, err := a.Generate(context.Background(), vendor.ImageRequest{
			Prompt:  "p",
			MaskURL: "https://cdn.example.com/mask.png",
		})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if f.payload["mask_url"] != "https://cdn.example.com/mask.png" {
			t.Errorf("mask_url missing from payload: %v", f.payload)
		}
	})
}

func TestChatAdapter(t *testing.T) {
	t.Run("returns output", func(t *testing.T) {
		f := newFakeFal(t, `{"output":"hello there"}`)
		got, err := NewChatAdapter(f.client(t)).Complete(context.Background(), vendor.ChatRequest{
			Prompt: "hi", Model: "google/gemini-2.5-flash",
		})
		if err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if got != "hello there" {
			t.Errorf("got %q", got)
		}
		if f.path != "/openrouter/router" {
			t.Errorf("wrong endpoint %q", f.path)
		}
	})

	t.Run("empty output is a vendor error", func(t *testing.T) {
		f := newFakeFal(t, `{"output":""}`)
		_, err := NewChatAdapter(f.client(t)).Complete(context.Background(), vendor.ChatRequest{Prompt: "hi", Model: "m"})
		var ve *domain.VendorError
		if !errors.As(err, &ve) {
			t.Fatalf("want vendor error, got %v", err)
		}
	})
}

func TestTTSAdapter(t *testing.T) {
	f := newFakeFal(t, `{"audio":{"url":"https://cdn/audio.mp3"},"duration_ms":1234}`)
	a := NewTTSAdapter(f.client(t))

	res, err := a.Synthesize(context.Background(), vendor.SpeechRequest{Text: "안녕하세요", Speed: 5.0})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if res.URL != "https://cdn/audio.mp3" || res.DurationMS != 1234 {
		t.Errorf("bad result: %+v", res)
	}
	if f.path != "/fal-ai/minimax/speech-2.6-hd" {
		t.Errorf("wrong endpoint %q", f.path)
	}

	voice, ok := f.payload["voice_setting"].(map[string]any)
	if !ok {
		t.Fatalf("voice_setting missing: %v", f.payload)
	}
	if voice["voice_id"] != "Wise_Woman" {
		t.Errorf("default voice expected, got %v", voice["voice_id"])
	}
	if voice["speed"] != float64(2.0) {
		t.Errorf("speed must clamp to 2.0, got %v", voice["speed"])
	}
}

func TestClampSpeed(t *testing.T) {
	for in, want := range map[float64]float64{0: 1.0, 0.1: 0.5, 1.3: 1.3, 5.0: 2.0} {
		if got := clampSpeed(in); got != want {
			t.Errorf("clampSpeed(%v) = %v, want %v", in, got, want)
		}
	}
}
