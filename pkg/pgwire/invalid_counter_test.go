package pgwire

import "testing"

func TestInvalidMessageCounter_Threshold(t *testing.T) {
	var c InvalidMessageCounter

	for i := 0; i < MaxInvalidMessageCount; i++ {
		if exceeded := c.Incr(); exceeded {
			t.Fatalf("exceeded too early at count %d", i+1)
		}
	}

	if exceeded := c.Incr(); !exceeded {
		t.Fatalf("expected exceeded after %d invalid messages", MaxInvalidMessageCount+1)
	}
}

func TestMsgName(t *testing.T) {
	if got := MsgName.Get(MsgClientParse); got != "Parse" {
		t.Fatalf("MsgName[Parse] = %q", got)
	}
	if got := MsgName.Get(MsgType(0)); got != "" {
		t.Fatalf("MsgName[0] = %q, want empty", got)
	}
}
