package solo

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/ib-77/ropchain/pkg/rop"
)

func TestSwitch_ShortCircuitOnFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	in := rop.Fail[int](errors.New("boom"))

	called := false
	out := Switch(ctx, in, func(ctx context.Context, v int) rop.Result[string] {
		called = true
		return rop.Success("ok")
	})

	if out.IsSuccess() || out.Err() == nil || out.Err().Error() != "boom" {
		t.Fatalf("expected failure 'boom', got success=%v err=%v", out.IsSuccess(), out.Err())
	}
	if out.Id() != in.Id() {
		t.Fatalf("expected failure id to be carried over")
	}
	if called {
		t.Fatalf("Switch onSuccess must not be called on failure input")
	}
}

func TestSwitch_Success(t *testing.T) {
	t.Parallel()
	out := Switch(context.Background(), rop.Success(4), func(ctx context.Context, v int) rop.Result[string] {
		return rop.Success(strconv.Itoa(v * 2))
	})
	if !out.IsSuccess() || out.Result() != "8" {
		t.Fatalf("expected success '8', got success=%v val=%v err=%v", out.IsSuccess(), out.Result(), out.Err())
	}
}

func TestMap_SuccessAndFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	out := Map(ctx, rop.Success(5), func(ctx context.Context, v int) int { return v + 1 })
	if !out.IsSuccess() || out.Result() != 6 {
		t.Fatalf("expected success 6, got success=%v val=%v", out.IsSuccess(), out.Result())
	}

	out2 := Map(ctx, rop.Fail[int](errors.New("oops")), func(ctx context.Context, v int) int { return v + 1 })
	if out2.IsSuccess() || out2.Err().Error() != "oops" {
		t.Fatalf("expected failure 'oops', got success=%v err=%v", out2.IsSuccess(), out2.Err())
	}
}

func TestTry_SuccessAndError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	out := Try(ctx, rop.Success(3), func(ctx context.Context, v int) (string, error) {
		return "val_3", nil
	})
	if !out.IsSuccess() || out.Result() != "val_3" {
		t.Fatalf("expected success 'val_3', got success=%v val=%v err=%v", out.IsSuccess(), out.Result(), out.Err())
	}

	out2 := Try(ctx, rop.Success(9), func(ctx context.Context, v int) (string, error) {
		return "", errors.New("try-error")
	})
	if out2.IsSuccess() || out2.Err() == nil || out2.Err().Error() != "try-error" {
		t.Fatalf("expected failure 'try-error', got success=%v err=%v", out2.IsSuccess(), out2.Err())
	}

	executed := 0
	out3 := Try(ctx, rop.Fail[int](errors.New("bad")), func(ctx context.Context, v int) (string, error) {
		executed++
		return "ignored", nil
	})
	if out3.IsSuccess() || out3.Err().Error() != "bad" {
		t.Fatalf("expected failure 'bad', got success=%v err=%v", out3.IsSuccess(), out3.Err())
	}
	if executed != 0 {
		t.Fatalf("expected Try to skip execution on failure input, got %d calls", executed)
	}
}

func TestTee_OnlyOnSuccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	called := 0

	Tee(ctx, rop.Success(1), func(ctx context.Context, r rop.Result[int]) { called++ })
	Tee(ctx, rop.Fail[int](errors.New("x")), func(ctx context.Context, r rop.Result[int]) { called++ })

	if called != 1 {
		t.Fatalf("expected side effect once, got %d", called)
	}
}

func TestDoubleTee_RoutesByTrack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var okCalls, errCalls int

	onOK := func(ctx context.Context, v int) { okCalls++ }
	onErr := func(ctx context.Context, err error) { errCalls++ }

	DoubleTee(ctx, rop.Success(1), onOK, onErr)
	DoubleTee(ctx, rop.Fail[int](errors.New("x")), onOK, onErr)
	DoubleTee(ctx, rop.Fail[int](errors.New("y")), nil, nil)

	if okCalls != 1 || errCalls != 1 {
		t.Fatalf("expected 1/1 calls, got ok=%d err=%d", okCalls, errCalls)
	}
}

func TestFinally_SuccessAndFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	onOK := func(ctx context.Context, v int) string { return "ok" }
	onErr := func(ctx context.Context, err error) string { return "fail" }

	if s := Finally(ctx, rop.Success(2), onOK, onErr); s != "ok" {
		t.Fatalf("expected 'ok', got %q", s)
	}
	if f := Finally(ctx, rop.Fail[int](errors.New("e")), onOK, onErr); f != "fail" {
		t.Fatalf("expected 'fail', got %q", f)
	}
}
