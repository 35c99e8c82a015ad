package kb

import (
	"fmt"
	"sync"
	"testing"

	"github.com/signalsfoundry/bolocalc/core"
	"github.com/signalsfoundry/bolocalc/model"
)

func newChannel(t *testing.T, name string, shared *core.Parameter) *core.Channel {
	t.Helper()
	set := core.NewParamSet()
	psat, err := core.NewParameter(core.SpecFor(model.ParamPsat), "NA", nil)
	if err != nil {
		t.Fatalf("NewParameter: %v", err)
	}
	set.Set(model.ParamPsat, psat)
	if shared != nil {
		set.Set(model.ParamSkyFraction, shared)
	}
	return &core.Channel{Name: name, Band: 1, Params: set}
}

func TestAddAndGetChannel(t *testing.T) {
	store := NewKnowledgeBase()
	if err := store.AddChannel(newChannel(t, "MF1", nil)); err != nil {
		t.Fatalf("AddChannel error: %v", err)
	}
	got := store.GetChannel("mf1")
	if got == nil || got.Name != "MF1" {
		t.Fatalf("GetChannel returned %#v, want MF1", got)
	}
	if store.GetChannel("MF2") != nil {
		t.Fatalf("GetChannel found a channel that was never added")
	}
}

func TestAddChannelDuplicate(t *testing.T) {
	store := NewKnowledgeBase()
	if err := store.AddChannel(newChannel(t, "MF1", nil)); err != nil {
		t.Fatalf("first AddChannel error: %v", err)
	}
	if err := store.AddChannel(newChannel(t, "mf1", nil)); err == nil {
		t.Fatalf("expected duplicate AddChannel to fail")
	}
}

func TestListChannelsKeepsOrder(t *testing.T) {
	store := NewKnowledgeBase()
	names := []string{"UHF2", "MF1", "LF1"}
	for _, n := range names {
		if err := store.AddChannel(newChannel(t, n, nil)); err != nil {
			t.Fatalf("AddChannel(%s): %v", n, err)
		}
	}
	got := store.ListChannels()
	if len(got) != len(names) {
		t.Fatalf("ListChannels len = %d, want %d", len(got), len(names))
	}
	for i, ch := range got {
		if ch.Name != names[i] {
			t.Fatalf("ListChannels[%d] = %s, want %s", i, ch.Name, names[i])
		}
	}
}

func TestChangeParamNotifiesOnCommit(t *testing.T) {
	store := NewKnowledgeBase()
	if err := store.AddChannel(newChannel(t, "MF1", nil)); err != nil {
		t.Fatalf("AddChannel error: %v", err)
	}

	var events []Event
	unsubscribe := store.Subscribe(func(ev Event) { events = append(events, ev) })

	changed, err := store.ChangeParam("MF1", "psat", "10")
	if err != nil || !changed {
		t.Fatalf("ChangeParam = %v, %v; want commit", changed, err)
	}
	changed, err = store.ChangeParam("MF1", "Psat", 10.0)
	if err != nil || changed {
		t.Fatalf("repeat ChangeParam = %v, %v; want no commit", changed, err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Type != EventParameterChanged || ev.Channel != "MF1" || ev.Param != model.ParamPsat || ev.Value == "" {
		t.Fatalf("event = %+v", ev)
	}

	unsubscribe()
	if _, err := store.ChangeParam("MF1", "psat", "11"); err != nil {
		t.Fatalf("ChangeParam error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("unsubscribed callback still invoked")
	}

	if _, err := store.ChangeParam("HF1", "psat", "1"); err == nil {
		t.Fatalf("expected error for unknown channel")
	}
	if _, err := store.ChangeParam("MF1", "bogus", "1"); err == nil {
		t.Fatalf("expected error for unknown parameter")
	}
}

func TestSharedParameterChange(t *testing.T) {
	fsky, err := core.NewParameter(core.SpecFor(model.ParamSkyFraction), "0.1", nil)
	if err != nil {
		t.Fatalf("NewParameter: %v", err)
	}
	store := NewKnowledgeBase()
	for _, n := range []string{"MF1", "MF2"} {
		if err := store.AddChannel(newChannel(t, n, fsky)); err != nil {
			t.Fatalf("AddChannel(%s): %v", n, err)
		}
	}
	if _, err := store.ChangeParam("MF1", "fsky", "0.4"); err != nil {
		t.Fatalf("ChangeParam: %v", err)
	}
	err = store.View("MF2", func(ch *core.Channel) error {
		if x, _ := ch.Params.Median(model.ParamSkyFraction, 1).Float(); x != 0.4 {
			return fmt.Errorf("MF2 sky fraction = %v, want 0.4", x)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.View("nope", func(*core.Channel) error { return nil }); err == nil {
		t.Fatalf("View of unknown channel succeeded")
	}
}

func TestConcurrentChangesAndViews(t *testing.T) {
	store := NewKnowledgeBase()
	if err := store.AddChannel(newChannel(t, "MF1", nil)); err != nil {
		t.Fatalf("AddChannel error: %v", err)
	}

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, _ = store.ChangeParam("MF1", "psat", fmt.Sprintf("%d", i+1))
		}(i)
		go func() {
			defer wg.Done()
			_ = store.View("MF1", func(ch *core.Channel) error {
				_ = ch.Params.Median(model.ParamPsat, 1)
				return nil
			})
		}()
	}
	wg.Wait()

	if x, ok := store.GetChannel("MF1").Params.Median(model.ParamPsat, 1).Float(); !ok || x <= 0 {
		t.Fatalf("psat after concurrent changes = %v", x)
	}
}
