package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"mentorly-backend/internal/models"
)

func newWalletFixture() (*WalletService, *fakeTokenRepo) {
	db := &fakeDB{}
	tokens := newFakeTokenRepo()
	return NewWalletService(db, tokens), tokens
}

func TestGrantCreditsBalanceAndRecordsUsage(t *testing.T) {
	svc, _ := newWalletFixture()
	userID := uuid.New()

	rec, err := svc.Grant(context.Background(), models.GrantTokensRequest{
		UserID: userID,
		Amount: 5,
		Reason: "signup bonus",
	})
	if err != nil {
		t.Fatalf("expected grant to succeed, got %v", err)
	}

	if rec.UsageType != models.UsageBonus {
		t.Fatalf("expected default usage type bonus, got %s", rec.UsageType)
	}
	if rec.BalanceBefore != 0 || rec.BalanceAfter != 5 {
		t.Fatalf("expected balance 0 -> 5, got %d -> %d", rec.BalanceBefore, rec.BalanceAfter)
	}
	if rec.ReferenceID == nil || *rec.ReferenceID != "signup bonus" {
		t.Fatalf("expected reason carried as reference id")
	}

	balance, err := svc.Balance(context.Background(), userID)
	if err != nil {
		t.Fatalf("expected balance read to succeed, got %v", err)
	}
	if balance != 5 {
		t.Fatalf("expected balance 5, got %d", balance)
	}
}

func TestGrantValidation(t *testing.T) {
	svc, _ := newWalletFixture()

	cases := []struct {
		name string
		req  models.GrantTokensRequest
	}{
		{"missing user", models.GrantTokensRequest{Amount: 5}},
		{"non-positive amount", models.GrantTokensRequest{UserID: uuid.New(), Amount: 0}},
		{"disallowed usage type", models.GrantTokensRequest{UserID: uuid.New(), Amount: 5, UsageType: models.UsageMeetingBooking}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Grant(context.Background(), tc.req)
			if _, ok := err.(*ValidationError); !ok {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestBalanceDefaultsToZero(t *testing.T) {
	svc, _ := newWalletFixture()
	balance, err := svc.Balance(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("expected balance read to succeed, got %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected zero balance for unknown user, got %d", balance)
	}
}
