package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"trading-chartv1/internal/model"
)

func TestWalkerKeepsInstrumentPrecision(t *testing.T) {
	ws, err := newWalkers([]string{"eurusd", "XAUUSD"}, 1)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 500; i++ {
		for _, w := range ws {
			tk := w.next(now)
			if tk.Price <= 0 {
				t.Fatalf("%s price %v", tk.Symbol, tk.Price)
			}
			d := int32(w.inst.Digits())
			p := decimal.NewFromFloat(tk.Price)
			if !p.Equal(p.Round(d)) {
				t.Fatalf("%s price %v has more than %d decimals", tk.Symbol, tk.Price, d)
			}
		}
	}
	if ws[0].inst.Symbol != "EURUSD" {
		t.Errorf("symbol not normalised: %s", ws[0].inst.Symbol)
	}
}

func TestNewWalkersRejectsUnknown(t *testing.T) {
	if _, err := newWalkers([]string{"DOGEUSD"}, 1); err == nil {
		t.Fatal("expected error for unknown symbol")
	}
	if _, err := newWalkers([]string{" "}, 1); err == nil {
		t.Fatal("expected error for empty list")
	}
}

func TestBroadcastReachesClient(t *testing.T) {
	h := newHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(wsHandler(h))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	ws, _ := newWalkers([]string{"EURUSD"}, 7)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runGenerator(ctx, h, ws, 5*time.Millisecond)

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var tk model.Tick
	if err := json.Unmarshal(msg, &tk); err != nil {
		t.Fatal(err)
	}
	if tk.Symbol != "EURUSD" || tk.Price <= 0 || tk.Time.IsZero() {
		t.Fatalf("unexpected tick %+v", tk)
	}
}
