package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/openfroyo/tokenbridge/pkg/evm"
)

func TestAdminTransferEnsure(t *testing.T) {
	other := common.HexToAddress("0x00000000000000000000000000000000000000BB")

	tests := []struct {
		name      string
		kind      byte
		admin     common.Address
		setup     func(chain *fakeChain)
		want      AdminOutcome
		wantAdmin common.Address
		wantCalls int
	}{
		{
			name:      "already desired",
			kind:      kindBridgeProxy,
			admin:     testDeployer,
			want:      AdminUnchanged,
			wantAdmin: testDeployer,
			wantCalls: 0,
		},
		{
			name:      "readable and different",
			kind:      kindBridgeProxy,
			admin:     testDeployer,
			want:      AdminChanged,
			wantAdmin: testProxyAdmin,
			wantCalls: 1,
		},
		{
			name:      "unreadable and settable",
			kind:      kindTokenProxy,
			admin:     testDeployer,
			setup:     func(chain *fakeChain) { chain.revertCall["admin"] = true },
			want:      AdminAssumedAndSet,
			wantAdmin: testProxyAdmin,
			wantCalls: 1,
		},
		{
			name:      "unreadable and held elsewhere",
			kind:      kindTokenProxy,
			admin:     other,
			want:      AdminNotApplicable,
			wantAdmin: other,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := newFakeChain()
			proxy, fc := chain.install(tt.kind)
			fc.admin = tt.admin
			if tt.setup != nil {
				tt.setup(chain)
			}

			desired := testProxyAdmin
			if tt.want == AdminUnchanged {
				desired = testDeployer
			}

			a := NewAdminTransfer(chain, NewGuard(chain, zerolog.Nop(), nil), zerolog.Nop(), nil)
			got, err := a.Ensure(context.Background(), evm.FiatTokenProxy, proxy, desired)
			if err != nil {
				t.Fatalf("Ensure() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Ensure() = %s, want %s", got, tt.want)
			}
			if fc.admin != tt.wantAdmin {
				t.Errorf("admin = %s, want %s", fc.admin.Hex(), tt.wantAdmin.Hex())
			}
			if len(chain.sent) != tt.wantCalls {
				t.Errorf("sent %d calls, want %d", len(chain.sent), tt.wantCalls)
			}
		})
	}
}

func TestAdminTransferProbeFailureAborts(t *testing.T) {
	chain := newFakeChain()
	proxy, fc := chain.install(kindBridgeProxy)
	fc.admin = testDeployer
	chain.callErr["admin"] = errors.New("connection refused")

	a := NewAdminTransfer(chain, NewGuard(chain, zerolog.Nop(), nil), zerolog.Nop(), nil)
	_, err := a.Ensure(context.Background(), evm.TransparentProxy, proxy, testProxyAdmin)
	if !HasCode(err, ErrCodeProbeUnavailable) {
		t.Fatalf("Ensure() error = %v, want %s", err, ErrCodeProbeUnavailable)
	}
	if !IsTransient(err) {
		t.Errorf("probe failure should be transient: %v", err)
	}
	if len(chain.sent) != 0 {
		t.Errorf("sent %v after failed probe", chain.methods())
	}
}

func TestAdminTransferRejectedChangeAborts(t *testing.T) {
	chain := newFakeChain()
	proxy, fc := chain.install(kindBridgeProxy)
	fc.admin = testDeployer
	chain.reject["changeAdmin"] = true

	a := NewAdminTransfer(chain, NewGuard(chain, zerolog.Nop(), nil), zerolog.Nop(), nil)
	_, err := a.Ensure(context.Background(), evm.TransparentProxy, proxy, testProxyAdmin)
	if !HasCode(err, ErrCodeAdminTransfer) {
		t.Fatalf("Ensure() error = %v, want %s", err, ErrCodeAdminTransfer)
	}
}
