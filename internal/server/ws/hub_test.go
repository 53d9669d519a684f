package ws

import (
	"reflect"
	"testing"
)

func TestChannelsFor(t *testing.T) {
	tests := []struct {
		name string
		msg  clientMsg
		want []string
	}{
		{
			"bet ids",
			clientMsg{Action: "subscribe", BetIDs: []string{"abc", " def "}},
			[]string{"bet:abc", "bet:def"},
		},
		{
			"symbols uppercased",
			clientMsg{Action: "subscribe-prices", Symbols: []string{"btc", "TSLA"}},
			[]string{"price:BTC", "price:TSLA"},
		},
		{
			"raw channels pass through",
			clientMsg{Action: "subscribe", Channels: []string{"weather"}},
			[]string{"weather"},
		},
		{
			"empties dropped",
			clientMsg{Action: "subscribe", BetIDs: []string{"", "  "}},
			[]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := channelsFor(tt.msg)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("channelsFor = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClientSubscriptionLifecycle(t *testing.T) {
	c := &client{subs: map[string]bool{"prices": true}}

	c.handleAction(clientMsg{Action: "subscribe", BetIDs: []string{"abc"}})
	if !c.isSubscribed("bet:abc") {
		t.Error("not subscribed after subscribe")
	}

	c.handleAction(clientMsg{Action: "unsubscribe", BetIDs: []string{"abc"}})
	if c.isSubscribed("bet:abc") {
		t.Error("still subscribed after unsubscribe")
	}

	if !c.isSubscribed("prices") {
		t.Error("default subscription lost")
	}
}
