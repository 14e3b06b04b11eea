package net

import (
	"net"
	"testing"
	"time"

	"github.com/mosaicnetworks/tally/src/common"
)

func TestTCPTransport_BadAddr(t *testing.T) {
	_, err := NewTCPTransport("0.0.0.0:0", "", 1, 0, common.NewTestEntry(t, common.TestLogLevel))
	if err != errNotAdvertisable {
		t.Fatalf("err: %v", err)
	}
}

func TestTCPTransport_WithAdvertise(t *testing.T) {
	trans, err := NewTCPTransport("0.0.0.0:0", "127.0.0.1:12345", 1, 0, common.NewTestEntry(t, common.TestLogLevel))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer trans.Close()

	if trans.AdvertiseAddr() != "127.0.0.1:12345" {
		t.Fatalf("bad: %v", trans.AdvertiseAddr())
	}
}

func TestTCPTransport_DialRefused(t *testing.T) {
	// a port that was just released has nothing listening on it
	list, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	target := list.Addr().String()
	list.Close()

	trans, err := NewTCPTransport("127.0.0.1:0", "", 1, time.Second, common.NewTestEntry(t, common.TestLogLevel))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer trans.Close()

	_, err = trans.stream.Dial(target, time.Second)
	if !common.Is(err, common.PeerUnreachable) {
		t.Fatalf("Dial: expected PeerUnreachable, got %v", err)
	}

	var out PeersResponse
	err = trans.ExchangePeers(target, time.Second, &PeersRequest{}, &out)
	if !common.Is(err, common.PeerUnreachable) {
		t.Fatalf("ExchangePeers: expected PeerUnreachable, got %v", err)
	}
}
