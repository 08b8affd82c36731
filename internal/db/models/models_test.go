package models

import (
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

// ---------------------------------------------------------------------------
// Client account email convention
// ---------------------------------------------------------------------------

func TestClientAccountEmail_RoundTrip(t *testing.T) {
	email := ClientAccountEmail("wdk_abc123")
	tenant, ok := TenantFromClientEmail(email)
	if !ok {
		t.Fatalf("TenantFromClientEmail(%q) not recognised", email)
	}
	if tenant != "wdk_abc123" {
		t.Errorf("tenant = %q, want wdk_abc123", tenant)
	}
}

func TestTenantFromClientEmail_Rejects(t *testing.T) {
	bad := []string{
		"",
		"alice@example.com",
		"client+@clients.workdesk.local",       // empty tenant
		"clientwdk_abc@clients.workdesk.local", // missing plus
		"client+wdk_abc@example.com",           // wrong domain
		"@clients.workdesk.local",
	}
	for _, email := range bad {
		if _, ok := TenantFromClientEmail(email); ok {
			t.Errorf("TenantFromClientEmail(%q) = true, want false", email)
		}
	}
}

// ---------------------------------------------------------------------------
// ClientKey staleness
// ---------------------------------------------------------------------------

func TestStaleLockedSince(t *testing.T) {
	now := time.Now()
	timeout := 30 * time.Minute

	old := now.Add(-31 * time.Minute)
	recent := now.Add(-10 * time.Minute)

	tests := []struct {
		name string
		key  ClientKey
		want bool
	}{
		{"locked 31m ago", ClientKey{Locked: true, LockedAt: &old}, true},
		{"locked 10m ago", ClientKey{Locked: true, LockedAt: &recent}, false},
		{"unlocked with old timestamp", ClientKey{Locked: false, LockedAt: &old}, false},
		{"locked without timestamp", ClientKey{Locked: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.StaleLockedSince(now, timeout); got != tt.want {
				t.Errorf("StaleLockedSince = %v, want %v", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Comment ownership
// ---------------------------------------------------------------------------

func TestCommentOwnership(t *testing.T) {
	adminComment := Comment{AuthorUserID: strPtr("admin-1")}
	clientComment := Comment{AuthorTenantID: strPtr("wdk_abc")}

	if !adminComment.OwnedByAdmin("admin-1") {
		t.Error("admin should own their comment")
	}
	if adminComment.OwnedByAdmin("admin-2") {
		t.Error("a different admin should not own the comment")
	}
	if adminComment.OwnedByTenant("wdk_abc") {
		t.Error("a tenant should not own an admin comment")
	}

	if !clientComment.OwnedByTenant("wdk_abc") {
		t.Error("tenant should own their comment")
	}
	if clientComment.OwnedByTenant("wdk_def") {
		t.Error("a different tenant should not own the comment")
	}
	if clientComment.OwnedByTenant("") {
		t.Error("empty tenant must never own a comment")
	}
	if clientComment.OwnedByAdmin("admin-1") {
		t.Error("an admin user id should not own a client comment")
	}
}

// ---------------------------------------------------------------------------
// Invoice arithmetic
// ---------------------------------------------------------------------------

func TestInvoiceAmounts(t *testing.T) {
	inv := Invoice{AmountCents: 10000, PaidCents: 2500}
	if due := inv.AmountDueCents(); due != 7500 {
		t.Errorf("AmountDueCents = %d, want 7500", due)
	}
	if inv.FullyPaid() {
		t.Error("invoice with balance should not be fully paid")
	}

	inv.PaidCents = 10000
	if !inv.FullyPaid() {
		t.Error("exactly covered invoice should be fully paid")
	}

	// Overpayment clamps the due amount at zero.
	inv.PaidCents = 12000
	if due := inv.AmountDueCents(); due != 0 {
		t.Errorf("overpaid AmountDueCents = %d, want 0", due)
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	live := Session{ExpiresAt: now.Add(time.Hour)}
	dead := Session{ExpiresAt: now.Add(-time.Minute)}
	if live.Expired(now) {
		t.Error("session expiring in an hour should not be expired")
	}
	if !dead.Expired(now) {
		t.Error("session past expiry should be expired")
	}
}
