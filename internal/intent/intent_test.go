package intent

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		text string
		want Intent
	}{
		{"It's already listed with someone", IntentListed},
		{"The house is ON THE MARKET", IntentListed},
		{"currently listed, please stop", IntentListed},
		{"not interested", IntentNegative},
		{"STOP", IntentNegative},
		{"wrong number sorry", IntentNegative},
		{"take me off your list", IntentNegative},
		{"yes please", IntentPositive},
		{"Sure, tell me more", IntentPositive},
		{"how much can I get for it?", IntentPositive},
		{"who is this?", IntentUnclassified},
		{"", IntentUnclassified},
	}
	for _, c := range cases {
		if got := Classify(c.text); got != c.want {
			t.Errorf("Classify(%q) = %s, want %s", c.text, got, c.want)
		}
	}
}

// Listed must win even when positive or negative phrases co-occur.
func TestClassifyPrecedence(t *testing.T) {
	cases := []struct {
		text string
		want Intent
	}{
		{"yes it's already listed", IntentListed},
		{"already listed, not interested", IntentListed},
		{"on the market but sure, call me", IntentListed},
		{"not interested, yes really", IntentNegative},
	}
	for _, c := range cases {
		if got := Classify(c.text); got != c.want {
			t.Errorf("Classify(%q) = %s, want %s", c.text, got, c.want)
		}
	}
}

func TestIsUnsubscribe(t *testing.T) {
	if !IsUnsubscribe("STOP") {
		t.Error("STOP should be an unsubscribe")
	}
	if !IsUnsubscribe("please take me off your list") {
		t.Error("take me off your list should be an unsubscribe")
	}
	if IsUnsubscribe("not interested") {
		t.Error("not interested declines but does not unsubscribe")
	}
}
