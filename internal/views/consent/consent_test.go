package consent

import (
	"strings"
	"testing"
)

func TestMarkdownStatesTheFacts(t *testing.T) {
	md := Markdown(Facts{EmployeeID: "emp-42", IntervalSeconds: 300, HeartbeatSeconds: 60, PreviewResolution: "960x540"})
	for _, want := range []string{"emp-42", "every **300 seconds**", "every **60 seconds**", "960x540"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
	if strings.Contains(md, "Live view is on") {
		t.Error("live notice shown while live view is off")
	}

	md = Markdown(Facts{EmployeeID: "emp-42", IntervalSeconds: 300, LiveView: true})
	if !strings.Contains(md, "Live view is on") {
		t.Error("live notice missing while live view is on")
	}
}

func TestRender(t *testing.T) {
	out, err := Render(Facts{EmployeeID: "emp-42", IntervalSeconds: 120, HeartbeatSeconds: 60}, "notty", 60)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out, "emp-42") {
		t.Error("rendered notice missing the employee id")
	}
	if !strings.Contains(out, "Work tracking is active") {
		t.Error("rendered notice missing its heading")
	}
}

func TestModelView(t *testing.T) {
	m := New("notty")
	m.SetSize(80, 30)
	m.SetFacts(Facts{EmployeeID: "emp-7", IntervalSeconds: 60, HeartbeatSeconds: 60})
	v := m.View()
	if !strings.Contains(v, "MONITORING NOTICE") {
		t.Error("overlay title missing")
	}
	if !strings.Contains(v, "emp-7") {
		t.Error("overlay body missing")
	}
}
