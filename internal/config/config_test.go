package config

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func TestDefaultsAreSane(t *testing.T) {
	d := Defaults()
	if d.BindAddress == "" {
		t.Error("expected a non-empty default bind address")
	}
	if d.MTU == 0 {
		t.Error("expected a non-zero default MTU")
	}
	if d.MaxConnections <= 0 {
		t.Error("expected a positive default max connections")
	}
}

func TestRegisterFlagsBindsIntoViper(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	v := viper.New()

	if err := RegisterFlags(cmd, v); err != nil {
		t.Fatalf("RegisterFlags failed: %v", err)
	}

	if got := v.GetString("bind-address"); got != Defaults().BindAddress {
		t.Errorf("expected default bind address %q, got %q", Defaults().BindAddress, got)
	}

	if err := cmd.PersistentFlags().Set("max-players", "42"); err != nil {
		t.Fatalf("failed to set flag: %v", err)
	}
	if got := v.GetInt("max-players"); got != 42 {
		t.Errorf("expected flag override to reach viper, got %d", got)
	}
}

func TestBuildAdvertisementUsesOverrideVerbatim(t *testing.T) {
	cfg := Defaults()
	cfg.Advertisement = "MCPE;custom;11;1.20.0;0;20;0;custom;Survival;1;19132;19133;"
	if got := cfg.BuildAdvertisement(0); got != cfg.Advertisement {
		t.Errorf("expected explicit advertisement to pass through unchanged, got %q", got)
	}
}

func TestBuildAdvertisementDerivesFromFields(t *testing.T) {
	cfg := Defaults()
	cfg.ServerName = "Test Server"
	cfg.MaxPlayers = 10
	got := cfg.BuildAdvertisement(3)
	if got == "" {
		t.Fatal("expected a non-empty derived advertisement")
	}
}
