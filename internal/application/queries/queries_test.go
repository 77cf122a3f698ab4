package queries

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vivekkundariya/wgtunnel/internal/domain/tunnel"
	"github.com/vivekkundariya/wgtunnel/internal/mocks"
)

func TestListQueryHandler_Handle(t *testing.T) {
	svc := mocks.NewFakeTunnelService("office", "home")
	svc.SetState("office", tunnel.State{Kind: tunnel.KindUp}, true)
	svc.SetState("stray", tunnel.State{Kind: tunnel.KindUnmanaged}, false)
	handler := NewListQueryHandler(svc)

	tests := []struct {
		name  string
		query ListQuery
		want  []string
	}{
		{"all", ListQuery{}, []string{"home", "office", "stray"}},
		{"active", ListQuery{ActiveOnly: true}, []string{"office"}},
		{"managed", ListQuery{ManagedOnly: true}, []string{"home", "office"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := handler.Handle(tt.query)
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %d tunnels", tt.want, len(got))
			}
			for i, name := range tt.want {
				if got[i].Name != name {
					t.Errorf("Position %d: expected %s, got %s", i, name, got[i].Name)
				}
			}
		})
	}
}

func TestStatusQueryHandler_Handle(t *testing.T) {
	svc := mocks.NewFakeTunnelService("office")
	handler := NewStatusQueryHandler(svc)

	snap, err := handler.Handle(context.Background(), StatusQuery{TunnelName: "office"})
	if err != nil {
		t.Fatalf("Handle() returned error: %v", err)
	}
	if snap.Name != "office" {
		t.Errorf("Expected office, got %s", snap.Name)
	}
	if len(svc.Calls()) != 0 {
		t.Error("Expected no poll without Refresh")
	}

	if _, err := handler.Handle(context.Background(), StatusQuery{TunnelName: "office", Refresh: true}); err != nil {
		t.Fatalf("Handle() with refresh returned error: %v", err)
	}
	if calls := svc.Calls(); len(calls) != 1 || calls[0] != "poll office" {
		t.Errorf("Expected one poll, got %v", calls)
	}

	_, err = handler.Handle(context.Background(), StatusQuery{TunnelName: "missing", Refresh: true})
	if !errors.Is(err, tunnel.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestConfigQueryHandler_Handle(t *testing.T) {
	svc := mocks.NewFakeTunnelService("office")
	handler := NewConfigQueryHandler(svc)

	text, err := handler.Handle(ConfigQuery{TunnelName: "office"})
	if err != nil {
		t.Fatalf("Handle() returned error: %v", err)
	}
	if strings.Contains(string(text), mocks.PrivateKey) {
		t.Error("Private key must be hidden by default")
	}
	if !strings.Contains(string(text), "PrivateKey = (hidden)") {
		t.Errorf("Expected redacted private key line, got:\n%s", text)
	}

	text, err = handler.Handle(ConfigQuery{TunnelName: "office", ShowKeys: true})
	if err != nil {
		t.Fatalf("Handle() returned error: %v", err)
	}
	if string(text) != mocks.ConfigText {
		t.Errorf("Expected config unchanged, got:\n%s", text)
	}

	// the stored config is untouched by redaction
	cfg, _ := svc.Config("office")
	if cfg.Interface.PrivateKey != mocks.PrivateKey {
		t.Error("Redaction leaked into the stored config")
	}
}
