package registry

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/plainview-io/plainview/pkg/plugin"
)

// fakePlugin records lifecycle calls for assertions.
type fakePlugin struct {
	info    plugin.PluginInfo
	initErr error
	calls   *[]string
}

func (f *fakePlugin) Info() plugin.PluginInfo { return f.info }

func (f *fakePlugin) Init(_ context.Context, _ plugin.Dependencies) error {
	*f.calls = append(*f.calls, "init:"+f.info.Name)
	return f.initErr
}

func (f *fakePlugin) Start(_ context.Context) error {
	*f.calls = append(*f.calls, "start:"+f.info.Name)
	return nil
}

func (f *fakePlugin) Stop(_ context.Context) error {
	*f.calls = append(*f.calls, "stop:"+f.info.Name)
	return nil
}

func testDeps(string) plugin.Dependencies {
	return plugin.Dependencies{Logger: zap.NewNop()}
}

func TestDependencyOrder(t *testing.T) {
	var calls []string
	reg := New(zap.NewNop())

	a := &fakePlugin{info: plugin.PluginInfo{Name: "a", Dependencies: []string{"b"}}, calls: &calls}
	b := &fakePlugin{info: plugin.PluginInfo{Name: "b"}, calls: &calls}

	if err := reg.Register(a); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if err := reg.Register(b); err != nil {
		t.Fatalf("register b: %v", err)
	}
	if err := reg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	ctx := context.Background()
	if err := reg.InitAll(ctx, testDeps); err != nil {
		t.Fatalf("init all: %v", err)
	}

	if len(calls) != 2 || calls[0] != "init:b" || calls[1] != "init:a" {
		t.Fatalf("calls = %v, want [init:b init:a]", calls)
	}

	calls = calls[:0]
	reg.StopAll(ctx)
	if len(calls) != 2 || calls[0] != "stop:a" || calls[1] != "stop:b" {
		t.Fatalf("stop calls = %v, want reverse order [stop:a stop:b]", calls)
	}
}

func TestMissingDependencyDisablesOptional(t *testing.T) {
	var calls []string
	reg := New(zap.NewNop())

	a := &fakePlugin{info: plugin.PluginInfo{Name: "a", Dependencies: []string{"ghost"}}, calls: &calls}
	if err := reg.Register(a); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if _, ok := reg.Get("a"); ok {
		t.Fatal("plugin with missing dependency still resolvable")
	}
}

func TestMissingDependencyFailsRequired(t *testing.T) {
	var calls []string
	reg := New(zap.NewNop())

	a := &fakePlugin{info: plugin.PluginInfo{Name: "a", Required: true, Dependencies: []string{"ghost"}}, calls: &calls}
	if err := reg.Register(a); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Validate(); err == nil {
		t.Fatal("expected validate error for required plugin with missing dependency")
	}
}

func TestCycleDetection(t *testing.T) {
	var calls []string
	reg := New(zap.NewNop())

	a := &fakePlugin{info: plugin.PluginInfo{Name: "a", Dependencies: []string{"b"}}, calls: &calls}
	b := &fakePlugin{info: plugin.PluginInfo{Name: "b", Dependencies: []string{"a"}}, calls: &calls}
	_ = reg.Register(a)
	_ = reg.Register(b)

	if err := reg.Validate(); err == nil {
		t.Fatal("expected cycle error")
	}
}

func TestOptionalInitFailureDisables(t *testing.T) {
	var calls []string
	reg := New(zap.NewNop())

	bad := &fakePlugin{
		info:    plugin.PluginInfo{Name: "bad"},
		initErr: errors.New("no good"),
		calls:   &calls,
	}
	ok := &fakePlugin{info: plugin.PluginInfo{Name: "ok"}, calls: &calls}
	_ = reg.Register(bad)
	_ = reg.Register(ok)
	if err := reg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	ctx := context.Background()
	if err := reg.InitAll(ctx, testDeps); err != nil {
		t.Fatalf("init all: %v", err)
	}
	if err := reg.StartAll(ctx); err != nil {
		t.Fatalf("start all: %v", err)
	}

	if _, resolvable := reg.Resolve("bad"); resolvable {
		t.Fatal("failed plugin still resolvable")
	}
	if _, resolvable := reg.Resolve("ok"); !resolvable {
		t.Fatal("healthy plugin not resolvable")
	}

	for _, c := range calls {
		if c == "start:bad" {
			t.Fatal("disabled plugin was started")
		}
	}
}

func TestDuplicateRegistration(t *testing.T) {
	var calls []string
	reg := New(zap.NewNop())

	a := &fakePlugin{info: plugin.PluginInfo{Name: "a"}, calls: &calls}
	if err := reg.Register(a); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(a); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}
