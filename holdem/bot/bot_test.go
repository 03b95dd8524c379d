package bot

import (
	"testing"

	"pokerarena/card"
	"pokerarena/holdem"
)

func preflopView(hole1, hole2 string, currentBet, myBet, stack int64) GameView {
	return GameView{
		Round:         holdem.PhasePreflop,
		HoleCards:     card.MustParseAll(hole1 + " " + hole2),
		Pot:           currentBet + myBet,
		CurrentBet:    currentBet,
		MyBet:         myBet,
		MyStack:       stack,
		MinRaise:      2,
		BigBlind:      2,
		ActivePlayers: 3,
		CanRaise:      true,
	}
}

func TestNewRejectsHumans(t *testing.T) {
	if _, err := New(holdem.AgentHuman, 1); err == nil {
		t.Fatalf("expected error for human agent type")
	}
	for _, kind := range []holdem.AgentType{holdem.AgentFish, holdem.AgentTAG, holdem.AgentLAG} {
		d, err := New(kind, 1)
		if err != nil {
			t.Fatalf("New(%s): %v", kind, err)
		}
		if d.Name() != string(kind) {
			t.Fatalf("Name() = %q, want %q", d.Name(), kind)
		}
	}
}

func TestPreflopStrengthOrdering(t *testing.T) {
	aa := PreflopStrength(card.MustParseAll("Ah Ad"))
	aks := PreflopStrength(card.MustParseAll("Ah Kh"))
	trash := PreflopStrength(card.MustParseAll("7h 2d"))
	if !(aa > aks && aks > trash) {
		t.Fatalf("strength ordering broken: AA=%.2f AKs=%.2f 72o=%.2f", aa, aks, trash)
	}
	if trash > 0.3 {
		t.Fatalf("72o too strong: %.2f", trash)
	}
}

func TestHandStrengthReadsBoard(t *testing.T) {
	hole := card.MustParseAll("Ah Ad")
	board := card.MustParseAll("Ac 7d 2s")
	made := HandStrength(hole, board)
	unimproved := HandStrength(card.MustParseAll("5h 4d"), board)
	if made <= unimproved {
		t.Fatalf("set of aces (%.2f) should beat five high (%.2f)", made, unimproved)
	}
}

func TestFishCallsSmallBets(t *testing.T) {
	d, _ := New(holdem.AgentFish, 42)
	v := preflopView("Qh", "7d", 2, 0, 100)
	for i := 0; i < 100; i++ {
		dec := d.Decide(v)
		if dec.Action == holdem.ActionFold {
			t.Fatalf("fish folded a small bet with a playable hand")
		}
	}
}

func TestFishFoldsBigBetsWithTrash(t *testing.T) {
	d, _ := New(holdem.AgentFish, 42)
	v := preflopView("7h", "2d", 20, 0, 100)
	folds := 0
	for i := 0; i < 200; i++ {
		if d.Decide(v).Action == holdem.ActionFold {
			folds++
		}
	}
	if folds < 110 || folds > 190 {
		t.Fatalf("fish folded %d/200 big bets with trash, want a clear majority", folds)
	}
}

func TestTagFoldsTrashFacingRaise(t *testing.T) {
	d, _ := New(holdem.AgentTAG, 7)
	v := preflopView("7h", "2d", 6, 0, 100)
	for i := 0; i < 50; i++ {
		if got := d.Decide(v).Action; got != holdem.ActionFold {
			t.Fatalf("tag played 72o into a raise: %s", got)
		}
	}
}

func TestTagRaisesPremium(t *testing.T) {
	d, _ := New(holdem.AgentTAG, 7)
	v := preflopView("Ah", "Ad", 2, 0, 100)
	dec := d.Decide(v)
	if dec.Action != holdem.ActionRaise {
		t.Fatalf("tag action = %s, want raise", dec.Action)
	}
	if dec.Amount < v.CurrentBet+v.MinRaise {
		t.Fatalf("raise amount %d below minimum %d", dec.Amount, v.CurrentBet+v.MinRaise)
	}
}

func TestTagChecksMediumForFree(t *testing.T) {
	d, _ := New(holdem.AgentTAG, 7)
	v := preflopView("Kh", "4d", 2, 2, 100)
	if got := d.Decide(v).Action; got != holdem.ActionCheck {
		t.Fatalf("tag action = %s, want check", got)
	}
}

func TestLagRespectsRaiseCap(t *testing.T) {
	d, _ := New(holdem.AgentLAG, 3)
	v := preflopView("Ah", "Ad", 12, 0, 200)
	v.RaisesThisRound = lagMaxRaisesPerRound
	for i := 0; i < 50; i++ {
		dec := d.Decide(v)
		if dec.Action == holdem.ActionRaise || dec.Action == holdem.ActionBet {
			t.Fatalf("lag raised past the per-round cap")
		}
	}

	v.RaisesThisRound = 0
	if got := d.Decide(v).Action; got != holdem.ActionRaise && got != holdem.ActionAllIn {
		t.Fatalf("lag action = %s, want aggression with aces under the cap", got)
	}
}

func TestLagBluffsSometimes(t *testing.T) {
	d, _ := New(holdem.AgentLAG, 3)
	v := preflopView("7h", "2d", 2, 2, 100)
	raises := 0
	for i := 0; i < 200; i++ {
		if a := d.Decide(v).Action; a == holdem.ActionRaise || a == holdem.ActionBet {
			raises++
		}
	}
	if raises < 15 || raises > 85 {
		t.Fatalf("lag bluffed %d/200, want an occasional but real bluff rate", raises)
	}
}

func TestRaiseToClampsToAllIn(t *testing.T) {
	v := preflopView("Ah", "Ad", 10, 0, 12)
	dec := raiseTo(v, 50)
	if dec.Action != holdem.ActionAllIn {
		t.Fatalf("action = %s, want all-in when the target covers the stack", dec.Action)
	}
}

func TestToCallNeverNegative(t *testing.T) {
	v := GameView{CurrentBet: 2, MyBet: 5}
	if v.ToCall() != 0 {
		t.Fatalf("ToCall = %d, want 0", v.ToCall())
	}
}
