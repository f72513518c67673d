package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestCheckoutRotation(t *testing.T) {
	g := NewGate([]string{"alpha", "beta"}, 1, 0, zerolog.Nop())
	ctx := context.Background()

	first, err := g.Checkout(ctx)
	if err != nil {
		t.Fatalf("first Checkout() error: %v", err)
	}
	second, err := g.Checkout(ctx)
	if err != nil {
		t.Fatalf("second Checkout() error: %v", err)
	}

	if first != "alpha" || second != "beta" {
		t.Errorf("checkout order = %q, %q, want alpha, beta", first, second)
	}

	// All credentials are out, the next checkout must suspend.
	resumed := make(chan string, 1)
	go func() {
		cred, _ := g.Checkout(ctx)
		resumed <- cred
	}()

	select {
	case cred := <-resumed:
		t.Fatalf("Checkout() returned %q while all credentials were out", cred)
	case <-time.After(50 * time.Millisecond):
	}

	g.Return(first)

	select {
	case cred := <-resumed:
		if cred != "alpha" {
			t.Errorf("resumed checkout = %q, want alpha", cred)
		}
	case <-time.After(time.Second):
		t.Fatal("Checkout() did not resume after Return()")
	}
}

func TestCheckoutContextCancelled(t *testing.T) {
	g := NewGate([]string{"only"}, 1, 0, zerolog.Nop())
	ctx := context.Background()

	if _, err := g.Checkout(ctx); err != nil {
		t.Fatalf("Checkout() error: %v", err)
	}

	timed, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()

	if _, err := g.Checkout(timed); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Checkout() error = %v, want deadline exceeded", err)
	}
}

func TestImplicitCredentialShared(t *testing.T) {
	g := NewGate(nil, 3, 0, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cred, err := g.Checkout(ctx)
		if err != nil {
			t.Fatalf("Checkout() %d error: %v", i, err)
		}
		if cred != "" {
			t.Errorf("Checkout() %d = %q, want implicit empty credential", i, cred)
		}
		if err := g.Acquire(ctx, cred); err != nil {
			t.Fatalf("Acquire() %d error: %v", i, err)
		}
	}
}

func TestAcquireEnforcesSpacing(t *testing.T) {
	const spacing = 60 * time.Millisecond

	g := NewGate(nil, 1, spacing, zerolog.Nop())
	ctx := context.Background()

	start := time.Now()
	if err := g.Acquire(ctx, ""); err != nil {
		t.Fatalf("first Acquire() error: %v", err)
	}
	g.Release("")

	if err := g.Acquire(ctx, ""); err != nil {
		t.Fatalf("second Acquire() error: %v", err)
	}
	g.Release("")

	if elapsed := time.Since(start); elapsed < spacing-10*time.Millisecond {
		t.Errorf("two acquisitions completed in %v, want at least %v", elapsed, spacing)
	}
}

func TestAcquireConcurrencyCap(t *testing.T) {
	g := NewGate([]string{"token"}, 2, 0, zerolog.Nop())
	ctx := context.Background()

	if err := g.Acquire(ctx, "token"); err != nil {
		t.Fatalf("first Acquire() error: %v", err)
	}
	if err := g.Acquire(ctx, "token"); err != nil {
		t.Fatalf("second Acquire() error: %v", err)
	}

	admitted := make(chan struct{})
	go func() {
		if err := g.Acquire(ctx, "token"); err == nil {
			close(admitted)
		}
	}()

	select {
	case <-admitted:
		t.Fatal("third Acquire() succeeded past the concurrency cap")
	case <-time.After(50 * time.Millisecond):
	}

	g.Release("token")

	select {
	case <-admitted:
	case <-time.After(time.Second):
		t.Fatal("Acquire() did not resume after Release()")
	}
}

func TestAcquireUnknownCredential(t *testing.T) {
	g := NewGate([]string{"token"}, 1, 0, zerolog.Nop())

	err := g.Acquire(context.Background(), "stranger")
	if !errors.Is(err, ErrUnknownCredential) {
		t.Errorf("Acquire() error = %v, want ErrUnknownCredential", err)
	}
}

func TestAcquireContextCancelled(t *testing.T) {
	g := NewGate([]string{"token"}, 1, 0, zerolog.Nop())
	ctx := context.Background()

	if err := g.Acquire(ctx, "token"); err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}

	timed, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()

	if err := g.Acquire(timed, "token"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Acquire() error = %v, want deadline exceeded", err)
	}
}

func TestPaceHonorsSpacing(t *testing.T) {
	const spacing = 50 * time.Millisecond

	g := NewGate([]string{"token"}, 1, spacing, zerolog.Nop())
	ctx := context.Background()

	start := time.Now()
	if err := g.Pace(ctx, "token"); err != nil {
		t.Fatalf("first Pace() error: %v", err)
	}
	if err := g.Pace(ctx, "token"); err != nil {
		t.Fatalf("second Pace() error: %v", err)
	}

	if elapsed := time.Since(start); elapsed < spacing-10*time.Millisecond {
		t.Errorf("two paced calls completed in %v, want at least %v", elapsed, spacing)
	}
}

func TestReturnWithoutCheckout(t *testing.T) {
	g := NewGate([]string{"token"}, 1, 0, zerolog.Nop())

	// Queue is already full; the extra return must not block or panic.
	g.Return("token")
}

func TestDuplicateCredentialsShareBudget(t *testing.T) {
	g := NewGate([]string{"token", "token"}, 1, 0, zerolog.Nop())
	ctx := context.Background()

	// Both rotation entries are the same credential, so the second
	// acquisition contends on the shared semaphore.
	if _, err := g.Checkout(ctx); err != nil {
		t.Fatalf("Checkout() error: %v", err)
	}
	if _, err := g.Checkout(ctx); err != nil {
		t.Fatalf("Checkout() error: %v", err)
	}

	if err := g.Acquire(ctx, "token"); err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}

	blocked := make(chan struct{})
	go func() {
		if err := g.Acquire(ctx, "token"); err == nil {
			close(blocked)
		}
	}()

	select {
	case <-blocked:
		t.Fatal("second Acquire() ignored the shared concurrency budget")
	case <-time.After(50 * time.Millisecond):
	}

	g.Release("token")

	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("Acquire() did not resume after Release()")
	}
}
