package admission_test

import (
	"testing"
	"time"

	"github.com/mentionflow/harness/internal/ingress/admission"
)

func TestTokenBucketLimiter_GlobalLimitAppliesAcrossSources(t *testing.T) {
	l := admission.NewTokenBucketLimiter(admission.Config{
		GlobalRPS:    1,
		GlobalBurst:  1,
		PerSourceRPS: 100,
		PerSourceBurst: 100,
		UnAuthRPS:    100,
		UnAuthBurst:  100,
	})
	defer l.Close()

	if !l.Allow("source-a") {
		t.Fatalf("first request should be admitted")
	}

	if l.Allow("source-b") {
		t.Fatalf("second request should be rejected by the exhausted global bucket")
	}
}

func TestTokenBucketLimiter_PerSourceIsolation(t *testing.T) {
	l := admission.NewTokenBucketLimiter(admission.Config{
		GlobalRPS:      1000,
		GlobalBurst:    1000,
		PerSourceRPS:   1,
		PerSourceBurst: 1,
		UnAuthRPS:      1000,
		UnAuthBurst:    1000,
	})
	defer l.Close()

	if !l.Allow("source-a") {
		t.Fatalf("source-a's first request should be admitted")
	}

	if l.Allow("source-a") {
		t.Fatalf("source-a's second request should be throttled by its own bucket")
	}

	if !l.Allow("source-b") {
		t.Fatalf("source-b should have its own untouched bucket")
	}
}

func TestTokenBucketLimiter_UnauthenticatedBucket(t *testing.T) {
	l := admission.NewTokenBucketLimiter(admission.Config{
		GlobalRPS:   1000,
		GlobalBurst: 1000,
		UnAuthRPS:   1,
		UnAuthBurst: 1,
	})
	defer l.Close()

	if !l.Allow("") {
		t.Fatalf("first unauthenticated request should be admitted")
	}

	if l.Allow("") {
		t.Fatalf("second unauthenticated request should be throttled")
	}
}

func TestTokenBucketLimiter_CleanupReclaimsIdleSources(t *testing.T) {
	l := admission.NewTokenBucketLimiter(admission.Config{
		GlobalRPS:       1000,
		GlobalBurst:     1000,
		PerSourceRPS:    1000,
		PerSourceBurst:  1000,
		UnAuthRPS:       1000,
		UnAuthBurst:     1000,
		CleanupInterval: 5 * time.Millisecond,
		IdleTimeout:     1 * time.Millisecond,
	})
	defer l.Close()

	l.Allow("source-a")

	time.Sleep(30 * time.Millisecond)

	// Nothing observable from outside beyond absence of a panic/leak; the
	// source's next Allow call simply recreates its bucket.
	if !l.Allow("source-a") {
		t.Fatalf("source-a should be re-admitted after its idle bucket was reclaimed")
	}
}
