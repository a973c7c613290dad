package provider

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"tunesync/internal/core"
)

func TestFactory_UnknownProvider(t *testing.T) {
	store, err := NewCredentialStore(newTestDB(t), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	factory := NewFactory(core.DefaultConfig(), store, nil, nil, zap.NewNop())

	tests := []struct {
		name    string
		service core.ServiceName
	}{
		{"Unknown name", core.ServiceName("napster")},
		{"Reserved sentinel", core.ServiceReference},
		{"Empty", core.ServiceName("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := factory.Driver(context.Background(), 1, tt.service)
			if !errors.Is(err, core.ErrInvalidArgument) {
				t.Errorf("error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestFactory_MissingCredentialsIsAuthError(t *testing.T) {
	store, err := NewCredentialStore(newTestDB(t), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	factory := NewFactory(core.DefaultConfig(), store, nil, nil, zap.NewNop())

	_, err = factory.Driver(context.Background(), 1, core.ServiceSubsonic)
	if !errors.Is(err, core.ErrAuth) {
		t.Errorf("error = %v, want ErrAuth", err)
	}
}
