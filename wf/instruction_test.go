package wf

import (
	"encoding/json"
	"testing"
)

func TestOp_HostDirected(t *testing.T) {
	internal := []Op{OpTransition, OpParentTransition}
	for _, op := range internal {
		if op.HostDirected() {
			t.Errorf("%v reported host-directed", op)
		}
	}
	hostOps := []Op{OpRequestInput, OpNotify, OpWarning, OpError, OpDebug, OpCustom}
	for _, op := range hostOps {
		if !op.HostDirected() {
			t.Errorf("%v reported engine-internal", op)
		}
	}
}

func TestInstruction_WireFormat(t *testing.T) {
	t.Run("field names", func(t *testing.T) {
		data, err := json.Marshal(Transition("next", map[string]any{"k": "v"}))
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if m["instruction"] != "transition" {
			t.Errorf("instruction field = %v", m["instruction"])
		}
		if m["next_state"] != "next" {
			t.Errorf("next_state field = %v", m["next_state"])
		}
	})

	t.Run("parent transition target field", func(t *testing.T) {
		data, err := json.Marshal(ParentTransition("up"))
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if m["next_state_for_parent"] != "up" {
			t.Errorf("next_state_for_parent field = %v", m["next_state_for_parent"])
		}
	})

	t.Run("zero fields are omitted", func(t *testing.T) {
		data, err := json.Marshal(RequestInput("name?"))
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if len(m) != 2 {
			t.Errorf("request_input wire record = %v, want only instruction and query", m)
		}
	})

	t.Run("unknown fields are tolerated", func(t *testing.T) {
		var ins Instruction
		raw := `{"instruction":"notify","message":"hi","level":"info","future_field":42}`
		if err := json.Unmarshal([]byte(raw), &ins); err != nil {
			t.Fatalf("Unmarshal with unknown field: %v", err)
		}
		if ins.Op != OpNotify || ins.Message != "hi" {
			t.Errorf("decoded = %+v", ins)
		}
	})
}

func TestInstruction_Constructors(t *testing.T) {
	if ins := Notify("info", "msg", nil); ins.Op != OpNotify || ins.Level != "info" || ins.Message != "msg" {
		t.Errorf("Notify = %+v", ins)
	}
	if ins := Warning("msg", nil); ins.Op != OpWarning || ins.Message != "msg" {
		t.Errorf("Warning = %+v", ins)
	}
	if ins := Error("msg", nil); ins.Op != OpError {
		t.Errorf("Error = %+v", ins)
	}
	if ins := Debug("trace", "msg", nil); ins.Op != OpDebug || ins.Level != "trace" {
		t.Errorf("Debug = %+v", ins)
	}
	if ins := Custom("act", 7); ins.Op != OpCustom || ins.Name != "act" || ins.Payload != 7 {
		t.Errorf("Custom = %+v", ins)
	}
	if ins := TransitionLabel("y"); ins.Op != OpTransition || ins.Label != "y" || ins.Target != "" {
		t.Errorf("TransitionLabel = %+v", ins)
	}
}
