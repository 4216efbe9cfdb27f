package parser

import "testing"

// TestChatParseRoundTrip exercises a full chat-line parse round trip.
func TestChatParseRoundTrip(t *testing.T) {
	body := `[ChatAll] [Online IDs:EOS: 0002a10186d9414496bf20d22d3860ba steam: 76561198012345678] TestPlayer : Hello world`

	ev, ok := ClassifyChat(body)
	if !ok {
		t.Fatalf("expected chat frame to classify")
	}
	if ev.Kind != EventChatMessage {
		t.Fatalf("expected CHAT_MESSAGE, got %v", ev.Kind)
	}
	if ev.Channel != ChatAll {
		t.Fatalf("expected channel ALL, got %v", ev.Channel)
	}
	if ev.PlayerName != "TestPlayer" {
		t.Fatalf("expected player name TestPlayer, got %q", ev.PlayerName)
	}
	if ev.Message != "Hello world" {
		t.Fatalf("expected message %q, got %q", "Hello world", ev.Message)
	}
	if !ev.IDs.HasSteamID || ev.IDs.SteamID.String() != "76561198012345678" {
		t.Fatalf("expected steamID 76561198012345678, got %+v", ev.IDs)
	}
	if !ev.IDs.HasEOSID || ev.IDs.EOSID.String() != "0002a10186d9414496bf20d22d3860ba" {
		t.Fatalf("expected eosID match, got %+v", ev.IDs)
	}
}

func TestAdminCamToleratesIdsCaseVariants(t *testing.T) {
	entered := `[Online Ids:EOS: 0002a10186d9414496bf20d22d3860ba steam: 76561198012345678] TestPlayer has possessed admin camera.`
	exited := `[Online IDs:EOS: 0002a10186d9414496bf20d22d3860ba steam: 76561198012345678] TestPlayer has unpossessed admin camera.`

	if ev, ok := ClassifyChat(entered); !ok || ev.Kind != EventAdminCamEntered {
		t.Fatalf("expected ADMIN_CAM_ENTERED for mixed-case 'Ids', got %+v ok=%v", ev, ok)
	}
	if ev, ok := ClassifyChat(exited); !ok || ev.Kind != EventAdminCamExited {
		t.Fatalf("expected ADMIN_CAM_EXITED for 'IDs', got %+v ok=%v", ev, ok)
	}
}

func TestClassifyChatInvalidIdentityMarked(t *testing.T) {
	body := `[ChatAll] [Online IDs:EOS: INVALID steam: INVALID] Ghost : hi`
	ev, ok := ClassifyChat(body)
	if !ok {
		t.Fatalf("expected frame to classify")
	}
	if !ev.IDs.Invalid {
		t.Fatalf("expected identity to be marked invalid")
	}
}

func TestParseListPlayersSkipsUnparseableLines(t *testing.T) {
	body := "garbage line\n" +
		"ID: 1 | Online IDs:EOS: 0002a10186d9414496bf20d22d3860ba steam: 76561198012345678 | Name: Alice | Team ID: 1 | Squad ID: N/A | Is Leader: False | Role: Rifleman"
	players, err := ParseListPlayers(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(players) != 1 {
		t.Fatalf("expected 1 player, got %d", len(players))
	}
	if players[0].Name != "Alice" || players[0].HasSquadID {
		t.Fatalf("unexpected player: %+v", players[0])
	}
}

func TestParseShowNextMapToBeVotedYieldsNullLayer(t *testing.T) {
	info, err := ParseShowNextMap("Next level is Narva, layer is To be voted")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.HasLayer {
		t.Fatalf("expected null layer for 'To be voted'")
	}
}
