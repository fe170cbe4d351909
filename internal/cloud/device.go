package cloud

import (
	"context"
	"net/http"
	"net/url"

	"github.com/mur-run/murdev/internal/identity"
	"github.com/mur-run/murdev/internal/version"
)

// VersionSource reports the versions announced on activation.
type VersionSource interface {
	Get() version.Info
}

// PairingCode is returned by the backend when pairing starts. The user types
// Code into the web UI to claim the device.
type PairingCode struct {
	Code       string `json:"code"`
	UUID       string `json:"uuid,omitempty"`
	Expiration int64  `json:"expiration,omitempty"`
}

// Device is the backend's record of this device.
type Device struct {
	UUID             string      `json:"uuid"`
	Name             string      `json:"name"`
	Description      string      `json:"description,omitempty"`
	CoreVersion      string      `json:"coreVersion,omitempty"`
	EnclosureVersion string      `json:"enclosureVersion,omitempty"`
	Platform         string      `json:"platform,omitempty"`
	User             *DeviceUser `json:"user,omitempty"`
}

// DeviceUser is the account a device is paired to.
type DeviceUser struct {
	UUID string `json:"uuid"`
}

// DeviceAPI wraps the device endpoints.
type DeviceAPI struct {
	client   *Client
	store    IdentityStore
	versions VersionSource
}

// NewDeviceAPI returns the device endpoints of b.
func NewDeviceAPI(b *Backend, versions VersionSource) *DeviceAPI {
	return &DeviceAPI{
		client:   b.Client("device"),
		store:    b.Store(),
		versions: versions,
	}
}

// GetCode starts pairing: it drops the in-memory identity and asks the
// backend for a pairing code bound to state.
func (d *DeviceAPI) GetCode(ctx context.Context, state string) (*PairingCode, error) {
	d.store.Update(identity.TokenData{})

	data, err := d.client.Request(ctx, RequestSpec{
		Path: "/code?state=" + url.QueryEscape(state),
	})
	if err != nil {
		return nil, err
	}

	var code PairingCode
	if err := decodeData(data, &code); err != nil {
		return nil, err
	}
	return &code, nil
}

// Activate completes pairing and returns the device's first credentials.
// The caller decides whether to persist them.
func (d *DeviceAPI) Activate(ctx context.Context, state, token string) (*identity.TokenData, error) {
	v := d.versions.Get()
	data, err := d.client.Request(ctx, RequestSpec{
		Method: http.MethodPost,
		Path:   "/activate",
		JSON: map[string]any{
			"state":            state,
			"token":            token,
			"coreVersion":      v.CoreVersion,
			"enclosureVersion": v.EnclosureVersion,
		},
	})
	if err != nil {
		return nil, err
	}

	var login identity.TokenData
	if err := decodeData(data, &login); err != nil {
		return nil, err
	}
	return &login, nil
}

// Get retrieves the device record.
func (d *DeviceAPI) Get(ctx context.Context) (*Device, error) {
	data, err := d.requestByUUID(ctx, "")
	if err != nil {
		return nil, err
	}

	var dev Device
	if err := decodeData(data, &dev); err != nil {
		return nil, err
	}
	return &dev, nil
}

// GetSettings retrieves the device's user configuration.
func (d *DeviceAPI) GetSettings(ctx context.Context) (map[string]any, error) {
	return d.requestMap(ctx, "/setting")
}

// GetLocation retrieves the device's configured location.
func (d *DeviceAPI) GetLocation(ctx context.Context) (map[string]any, error) {
	return d.requestMap(ctx, "/location")
}

// Find is the old name of Get.
//
// Deprecated: use Get.
func (d *DeviceAPI) Find(ctx context.Context) (*Device, error) {
	return d.Get(ctx)
}

// FindSetting is the old name of GetSettings.
//
// Deprecated: use GetSettings.
func (d *DeviceAPI) FindSetting(ctx context.Context) (map[string]any, error) {
	return d.GetSettings(ctx)
}

// FindLocation is the old name of GetLocation.
//
// Deprecated: use GetLocation.
func (d *DeviceAPI) FindLocation(ctx context.Context) (map[string]any, error) {
	return d.GetLocation(ctx)
}

func (d *DeviceAPI) requestMap(ctx context.Context, suffix string) (map[string]any, error) {
	data, err := d.requestByUUID(ctx, suffix)
	if err != nil {
		return nil, err
	}

	var out map[string]any
	if err := decodeData(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DeviceAPI) requestByUUID(ctx context.Context, suffix string) (any, error) {
	id := d.store.Get().UUID
	if id == "" {
		return nil, ErrNotPaired
	}
	return d.client.Request(ctx, RequestSpec{Path: "/" + id + suffix})
}
