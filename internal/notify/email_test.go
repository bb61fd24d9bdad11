package notify

import (
	"strings"
	"testing"
)

func TestPaymentStatusBodyDepositIncludesBalance(t *testing.T) {
	c := bookingContact{Code: "BK-1001", GuestName: "Sari", BalanceDue: 700000, Currency: "IDR"}
	body := paymentStatusBody(c, "deposit_paid")
	if !strings.Contains(body, "BK-1001") {
		t.Fatalf("body missing booking code: %s", body)
	}
	if !strings.Contains(body, "700000") {
		t.Fatalf("body missing balance due: %s", body)
	}
}

func TestPaymentStatusBodyFullyPaid(t *testing.T) {
	c := bookingContact{Code: "BK-1001", GuestName: "Sari"}
	body := paymentStatusBody(c, "fully_paid")
	if !strings.Contains(body, "full payment") {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestBodyEscapesGuestName(t *testing.T) {
	c := bookingContact{Code: "BK-1", GuestName: "<script>x</script>"}
	body := confirmationBody(c)
	if strings.Contains(body, "<script>") {
		t.Fatalf("name not escaped: %s", body)
	}
}

func TestSendDisabledSkips(t *testing.T) {
	n := &Notifier{Enabled: false}
	if err := n.send("guest@example.com", "s", "b"); err != nil {
		t.Fatalf("disabled notifier must not error: %v", err)
	}
}
