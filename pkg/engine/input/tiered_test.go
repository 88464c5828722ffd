package input

import "testing"

func TestMapToIntent(t *testing.T) {
	cases := []struct {
		code string
		want Action
	}{
		{"arrow_up", ActionMoveNorth},
		{"a", ActionMoveWest},
		{"space", ActionAttack},
		{"e", ActionInteract},
		{"f8", ActionSimulateDeviceLoss},
		{"gamepad_dpad_right", ActionMoveEast},
		{"nonsense", ActionNone},
	}
	for _, tc := range cases {
		got := MapToIntent(DebouncedInput{Device: DeviceKeyboard, Code: tc.code})
		if got.Action != tc.want {
			t.Errorf("MapToIntent(%q) = %s, want %s", tc.code, ActionName(got.Action), ActionName(tc.want))
		}
	}
}

func TestIntentMovement(t *testing.T) {
	dx, dy, ok := Intent{Action: ActionMoveWest}.Movement()
	if !ok || dx != -1 || dy != 0 {
		t.Errorf("Movement(west) = %d, %d, %v, want -1, 0, true", dx, dy, ok)
	}
	if _, _, ok := (Intent{Action: ActionAttack}).Movement(); ok {
		t.Error("Movement(attack) reported movement")
	}
}

func TestSetSingleBinding_KeepsReservedCodes(t *testing.T) {
	defer ResetBindings()

	SetSingleBinding(ActionMoveNorth, "i")
	if MapToIntent(DebouncedInput{Code: "i"}).Action != ActionMoveNorth {
		t.Error("new binding not applied")
	}
	if MapToIntent(DebouncedInput{Code: "w"}).Action != ActionNone {
		t.Error("old binding survived rebinding")
	}
	if MapToIntent(DebouncedInput{Code: "arrow_up"}).Action != ActionMoveNorth {
		t.Error("reserved arrow binding was removed")
	}

	SetSingleBinding(ActionAttack, "f9")
	if MapToIntent(DebouncedInput{Code: "f9"}).Action != ActionDump {
		t.Error("reserved code was rebound")
	}
}

func TestActionByName(t *testing.T) {
	cases := []struct {
		name string
		want Action
		ok   bool
	}{
		{"use_item", ActionUseItem, true},
		{"Use Item", ActionUseItem, true},
		{"move-north", ActionMoveNorth, true},
		{"QUIT", ActionQuit, true},
		{"none", ActionNone, false},
		{"fly", ActionNone, false},
	}
	for _, tc := range cases {
		got, ok := ActionByName(tc.name)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ActionByName(%q) = %s, %v, want %s, %v", tc.name, ActionName(got), ok, ActionName(tc.want), tc.ok)
		}
	}
}
