package service

import (
	"github.com/AdamBeresnev/padel-tournament/internal/apperr"
	"github.com/AdamBeresnev/padel-tournament/internal/bracket"
)

const minTiebreakPoints = 7

// setWinner returns 1 or 2 for a legal set under the rules.
//
// A set is won at GamesToWinSet with a two game lead; past that the lead must stay two
// until TiebreakAt-all, where a tiebreak decides it (TiebreakAt+1 against TiebreakAt).
func setWinner(rules bracket.ScoringRules, set bracket.Set, number int) (int, error) {
	g1, g2 := set.Team1Games, set.Team2Games
	if g1 < 0 || g2 < 0 {
		return 0, apperr.Validation("set %d: games cannot be negative", number)
	}
	if g1 == g2 {
		return 0, apperr.Validation("set %d: %d-%d has no winner", number, g1, g2)
	}

	hi, lo, winner := g1, g2, 1
	if g2 > g1 {
		hi, lo, winner = g2, g1, 2
	}

	goal, tb := rules.GamesToWinSet, rules.TiebreakAt
	tiebreakSet := hi == tb+1 && lo == tb
	hasTiebreak := set.Team1Tiebreak != nil || set.Team2Tiebreak != nil

	switch {
	case hi == goal && lo <= goal-2:
	case hi > goal && hi <= tb+1 && lo == hi-2:
	case tiebreakSet:
	default:
		return 0, apperr.Validation("set %d: %d-%d is not a valid score when sets are played to %d games with a tiebreak at %d-%d",
			number, g1, g2, goal, tb, tb)
	}

	if !hasTiebreak {
		return winner, nil
	}
	if !tiebreakSet {
		return 0, apperr.Validation("set %d: tiebreak points given for a set that was not decided by a tiebreak", number)
	}
	if set.Team1Tiebreak == nil || set.Team2Tiebreak == nil {
		return 0, apperr.Validation("set %d: tiebreak points must be given for both teams", number)
	}

	t1, t2 := *set.Team1Tiebreak, *set.Team2Tiebreak
	tbHi, tbLo, tbWinner := t1, t2, 1
	if t2 > t1 {
		tbHi, tbLo, tbWinner = t2, t1, 2
	}
	if tbLo < 0 || tbHi < minTiebreakPoints || tbHi-tbLo < 2 || (tbHi > minTiebreakPoints && tbHi-tbLo != 2) {
		return 0, apperr.Validation("set %d: tiebreak %d-%d is not a finished tiebreak", number, t1, t2)
	}
	if tbWinner != winner {
		return 0, apperr.Validation("set %d: tiebreak winner does not match the set winner", number)
	}
	return winner, nil
}

// ValidateSets checks a full match score and returns the winning slot (1 or 2).
// The match must end exactly when one team reaches SetsToWin.
func ValidateSets(rules bracket.ScoringRules, sets []bracket.Set) (int, error) {
	if len(sets) == 0 {
		return 0, apperr.Validation("at least one set is required")
	}

	var won [3]int
	for i, set := range sets {
		if won[1] == rules.SetsToWin || won[2] == rules.SetsToWin {
			return 0, apperr.Validation("set %d was played after the match was already decided", i+1)
		}
		winner, err := setWinner(rules, set, i+1)
		if err != nil {
			return 0, err
		}
		won[winner]++
	}

	switch {
	case won[1] == rules.SetsToWin:
		return 1, nil
	case won[2] == rules.SetsToWin:
		return 2, nil
	}
	return 0, apperr.Validation("match is not finished: sets %d-%d, %d needed to win", won[1], won[2], rules.SetsToWin)
}
