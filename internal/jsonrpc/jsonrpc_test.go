package jsonrpc

import (
	"encoding/json"
	"testing"
)

func TestNewSendRawTransaction(t *testing.T) {
	req, err := NewSendRawTransaction("0xf86b01", NewIDUint(12))
	if err != nil {
		t.Fatalf("NewSendRawTransaction: %v", err)
	}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	want := `{"jsonrpc":"2.0","method":"eth_sendRawTransaction","params":["0xf86b01"],"id":12}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}

func TestMarshalBatch_PreservesOrder(t *testing.T) {
	var reqs []*Request
	for i := uint64(5); i < 8; i++ {
		req, err := NewSendRawTransaction("0x01", NewIDUint(i))
		if err != nil {
			t.Fatalf("NewSendRawTransaction: %v", err)
		}
		reqs = append(reqs, req)
	}

	data, err := MarshalBatch(reqs)
	if err != nil {
		t.Fatalf("MarshalBatch: %v", err)
	}

	var parsed []Request
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(parsed) != 3 {
		t.Fatalf("len = %d, want 3", len(parsed))
	}
	want := []string{"5", "6", "7"}
	for i, req := range parsed {
		if got := req.ID.String(); got != want[i] {
			t.Errorf("parsed[%d].ID = %s, want %s", i, got, want[i])
		}
	}
}

func TestMarshalBatch_Empty(t *testing.T) {
	if _, err := MarshalBatch(nil); err == nil {
		t.Fatal("expected error for empty batch")
	}
}

func TestID_LargeNonce(t *testing.T) {
	var id ID
	if err := json.Unmarshal([]byte("18446744073709551615"), &id); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got := id.String(); got != "18446744073709551615" {
		t.Errorf("String() = %s", got)
	}
	if id.IsNull() {
		t.Error("numeric id reported as null")
	}

	if err := json.Unmarshal([]byte("null"), &id); err != nil || !id.IsNull() {
		t.Errorf("null id: IsNull=%v err=%v", id.IsNull(), err)
	}
}

func TestParseResponse(t *testing.T) {
	ok, err := ParseResponse([]byte(`{"jsonrpc":"2.0","id":1,"result":"0xabc"}`))
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if ok.HasError() || ok.ResultIsNull() {
		t.Errorf("expected result response, got %+v", ok)
	}

	failed, err := ParseResponse([]byte(`{"jsonrpc":"2.0","id":2,"result":null,"error":{"code":-32000,"message":"nonce too low"}}`))
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if !failed.HasError() || failed.Error.Message != "nonce too low" {
		t.Errorf("expected error response, got %+v", failed)
	}
	if !failed.ResultIsNull() {
		t.Error("error response should have null result")
	}

	if _, err := ParseResponse([]byte(`[1]`)); err == nil {
		t.Error("expected error for array")
	}
}

func TestParseNotification(t *testing.T) {
	n, err := ParseNotification([]byte(`{"jsonrpc":"2.0","method":"eth_subscription","params":{"subscription":"0x1","result":"0xdef"}}`))
	if err != nil {
		t.Fatalf("ParseNotification: %v", err)
	}
	if !n.HasResult() || n.Params.Subscription != "0x1" {
		t.Errorf("unexpected notification %+v", n)
	}

	n, err = ParseNotification([]byte(`{"jsonrpc":"2.0","method":"eth_subscription","params":{"result":null}}`))
	if err != nil || n.HasResult() {
		t.Errorf("null result: HasResult=%v err=%v", n.HasResult(), err)
	}
}

func TestSplitMessages(t *testing.T) {
	msgs, err := SplitMessages([]byte(`[{"id":1},{"id":2}]`))
	if err != nil {
		t.Fatalf("SplitMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}

	msgs, err = SplitMessages([]byte(` {"method":"eth_subscription"}`))
	if err != nil || len(msgs) != 1 {
		t.Fatalf("single: len=%d err=%v", len(msgs), err)
	}

	if _, err := SplitMessages([]byte("not json")); err == nil {
		t.Error("expected error for invalid frame")
	}
	if _, err := SplitMessages(nil); err == nil {
		t.Error("expected error for empty frame")
	}
}
