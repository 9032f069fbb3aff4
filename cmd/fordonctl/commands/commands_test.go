package commands_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/plateworks/fordon/cmd/fordonctl/commands"
	"github.com/plateworks/fordon/internal/core/vehicle"
	"github.com/plateworks/fordon/internal/shell/lookup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type mockApp struct {
	vehicleFunc func(ctx context.Context, regnr string, opts lookup.Options) (*vehicle.Vehicle, error)
	ownerFunc   func(ctx context.Context, regnr string, opts lookup.Options) (*vehicle.OwnerLookup, error)
	profileFunc func(ctx context.Context, profileID string, opts lookup.Options) (*vehicle.OwnerProfile, error)
	addressFunc func(ctx context.Context, regnr string, opts lookup.Options) (*vehicle.AddressVehicles, error)
}

func (m *mockApp) Vehicle(ctx context.Context, regnr string, opts lookup.Options) (*vehicle.Vehicle, error) {
	if m.vehicleFunc != nil {
		return m.vehicleFunc(ctx, regnr, opts)
	}
	return &vehicle.Vehicle{Regnr: regnr}, nil
}

func (m *mockApp) OwnerByRegnr(ctx context.Context, regnr string, opts lookup.Options) (*vehicle.OwnerLookup, error) {
	if m.ownerFunc != nil {
		return m.ownerFunc(ctx, regnr, opts)
	}
	return &vehicle.OwnerLookup{Regnr: regnr}, nil
}

func (m *mockApp) OwnerProfile(ctx context.Context, profileID string, opts lookup.Options) (*vehicle.OwnerProfile, error) {
	if m.profileFunc != nil {
		return m.profileFunc(ctx, profileID, opts)
	}
	return &vehicle.OwnerProfile{ProfileID: profileID}, nil
}

func (m *mockApp) AddressVehicles(ctx context.Context, regnr string, opts lookup.Options) (*vehicle.AddressVehicles, error) {
	if m.addressFunc != nil {
		return m.addressFunc(ctx, regnr, opts)
	}
	return &vehicle.AddressVehicles{Regnr: regnr}, nil
}

func execute(t *testing.T, app commands.Application, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cli := commands.New(app)
	cli.SetArgs(args)
	cli.SetOutput(&out, &errOut)
	err := cli.Execute(context.Background())
	return out.String(), err
}

func TestVehicleCommand(t *testing.T) {
	t.Run("renders JSON by default", func(t *testing.T) {
		var capturedRegnr string
		mock := &mockApp{
			vehicleFunc: func(_ context.Context, regnr string, _ lookup.Options) (*vehicle.Vehicle, error) {
				capturedRegnr = regnr
				return &vehicle.Vehicle{Regnr: "ABC123", PageTitle: "ABC123 Volvo V70"}, nil
			},
		}

		out, err := execute(t, mock, "vehicle", "abc123")
		require.NoError(t, err)
		assert.Equal(t, "abc123", capturedRegnr)

		var v vehicle.Vehicle
		require.NoError(t, json.Unmarshal([]byte(out), &v))
		assert.Equal(t, "ABC123", v.Regnr)
		assert.Equal(t, "ABC123 Volvo V70", v.PageTitle)
	})

	t.Run("renders YAML with -o yaml", func(t *testing.T) {
		mock := &mockApp{
			vehicleFunc: func(_ context.Context, _ string, _ lookup.Options) (*vehicle.Vehicle, error) {
				return &vehicle.Vehicle{Regnr: "ABC123"}, nil
			},
		}

		out, err := execute(t, mock, "vehicle", "abc123", "-o", "yaml")
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, yaml.Unmarshal([]byte(out), &decoded))
		assert.Equal(t, "ABC123", decoded["regnr"])
	})

	t.Run("rejects unknown output format", func(t *testing.T) {
		_, err := execute(t, &mockApp{}, "vehicle", "abc123", "-o", "xml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown output format")
	})

	t.Run("propagates no-cache flag", func(t *testing.T) {
		var capturedOpts lookup.Options
		mock := &mockApp{
			vehicleFunc: func(_ context.Context, _ string, opts lookup.Options) (*vehicle.Vehicle, error) {
				capturedOpts = opts
				return &vehicle.Vehicle{}, nil
			},
		}

		_, err := execute(t, mock, "vehicle", "abc123", "--no-cache")
		require.NoError(t, err)
		assert.True(t, capturedOpts.BypassCache)
	})

	t.Run("returns lookup errors", func(t *testing.T) {
		mock := &mockApp{
			vehicleFunc: func(_ context.Context, _ string, _ lookup.Options) (*vehicle.Vehicle, error) {
				return nil, errors.New("simulated error")
			},
		}

		_, err := execute(t, mock, "vehicle", "abc123")
		assert.EqualError(t, err, "simulated error")
	})

	t.Run("requires a registration number", func(t *testing.T) {
		_, err := execute(t, &mockApp{}, "vehicle")
		assert.Error(t, err)
	})
}

func TestOwnerCommand(t *testing.T) {
	mock := &mockApp{
		ownerFunc: func(_ context.Context, regnr string, _ lookup.Options) (*vehicle.OwnerLookup, error) {
			return &vehicle.OwnerLookup{Regnr: "XBD134", VehicleTitle: "XBD134 Saab 9-5"}, nil
		},
	}

	out, err := execute(t, mock, "owner", "xbd134")
	require.NoError(t, err)

	var o vehicle.OwnerLookup
	require.NoError(t, json.Unmarshal([]byte(out), &o))
	assert.Equal(t, "XBD134", o.Regnr)
	assert.Equal(t, "XBD134 Saab 9-5", o.VehicleTitle)
}

func TestProfileCommand(t *testing.T) {
	var capturedID string
	mock := &mockApp{
		profileFunc: func(_ context.Context, profileID string, _ lookup.Options) (*vehicle.OwnerProfile, error) {
			capturedID = profileID
			return &vehicle.OwnerProfile{ProfileID: profileID, Name: "Anna Andersson"}, nil
		},
	}

	out, err := execute(t, mock, "profile", "abc123xyz")
	require.NoError(t, err)
	assert.Equal(t, "abc123xyz", capturedID)
	assert.Contains(t, out, "Anna Andersson")
}

func TestAddressCommand(t *testing.T) {
	mock := &mockApp{
		addressFunc: func(_ context.Context, regnr string, _ lookup.Options) (*vehicle.AddressVehicles, error) {
			return &vehicle.AddressVehicles{Regnr: "ABC123", Address: "Storgatan 1"}, nil
		},
	}

	out, err := execute(t, mock, "address", "abc123")
	require.NoError(t, err)
	assert.Contains(t, out, "Storgatan 1")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, &mockApp{}, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "fordonctl "))
}
