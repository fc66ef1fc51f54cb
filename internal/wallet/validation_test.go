package wallet

import (
	"testing"
)

func TestValidateCreateWalletRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateWalletRequest
		wantErr bool
	}{
		{
			name: "valid request",
			req: CreateWalletRequest{
				OwnerUserID: "user-123",
				Currency:    "USD",
			},
			wantErr: false,
		},
		{
			name: "valid with lowercase currency",
			req: CreateWalletRequest{
				OwnerUserID: "user-123",
				Currency:    "eur",
			},
			wantErr: false,
		},
		{
			name: "empty owner_user_id",
			req: CreateWalletRequest{
				OwnerUserID: "",
				Currency:    "USD",
			},
			wantErr: true,
		},
		{
			name: "invalid currency code",
			req: CreateWalletRequest{
				OwnerUserID: "user-123",
				Currency:    "INVALID",
			},
			wantErr: true,
		},
		{
			name: "unsupported currency",
			req: CreateWalletRequest{
				OwnerUserID: "user-123",
				Currency:    "XYZ",
			},
			wantErr: true,
		},
		{
			name: "empty currency",
			req: CreateWalletRequest{
				OwnerUserID: "user-123",
				Currency:    "",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCreateWalletRequest(&tt.req)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCreateWalletRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		wantErr bool
	}{
		{name: "valid amount", amount: "100.50", wantErr: false},
		{name: "valid integer", amount: "100", wantErr: false},
		{name: "zero is invalid", amount: "0", wantErr: true},
		{name: "negative amount", amount: "-100.50", wantErr: true},
		{name: "empty amount", amount: "", wantErr: true},
		{name: "invalid format", amount: "abc", wantErr: true},
		{name: "more than two decimals rejected", amount: "100.005", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateAmount(tt.amount)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAmount() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
