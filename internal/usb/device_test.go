package usb

import (
	"errors"
	"testing"

	"github.com/Gonanf/gabinator-desktop-remaster/internal/aoa"
)

func TestCheckClaimed(t *testing.T) {
	testcases := []struct {
		ep aoa.AccessoryEndpoint
		ok bool
	}{
		{aoa.AccessoryEndpoint{Config: 1, Interface: 0, Alternate: 0, Address: 0x01}, true},
		{aoa.AccessoryEndpoint{Config: 1, Interface: 1, Alternate: 0, Address: 0x02}, false},
		{aoa.AccessoryEndpoint{Config: 1, Interface: 0, Alternate: 1, Address: 0x02}, false},
	}
	for _, tc := range testcases {
		err := checkClaimed(aoa.AccessoryInterface, 0, tc.ep)
		if tc.ok && err != nil {
			t.Errorf("%s: %v", tc.ep, err)
		}
		if !tc.ok && !errors.Is(err, aoa.ErrEndpointNotClaimed) {
			t.Errorf("%s: err = %v", tc.ep, err)
		}
	}
}
