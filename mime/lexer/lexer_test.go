/*
Maddy Mail Server - Composable all-in-one email server.
Copyright © 2019-2020 Max Mazurov <fox.cpp@disroot.org>, Maddy Mail Server contributors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package lexer

import "testing"

func TestStripCommentsNested(t *testing.T) {
	got := StripComments(`John (work (and play)) Smith`)
	want := `John  Smith`
	if got != want {
		t.Errorf("StripComments = %q, want %q", got, want)
	}
}

func TestStripCommentsLeavesQuotedParensAlone(t *testing.T) {
	got := StripComments(`"a (b) c" (real comment)`)
	want := `"a (b) c" `
	if got != want {
		t.Errorf("StripComments = %q, want %q", got, want)
	}
}

func TestSplitTopLevelIgnoresQuotedAndAngleBracketedSeparators(t *testing.T) {
	got := SplitTopLevel(`"a, b" <c, d>, e`, ',')
	want := []string{`"a, b" <c, d>`, ` e`}
	if len(got) != len(want) {
		t.Fatalf("SplitTopLevel = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("part %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFindTopLevelSkipsQuotedAndAngleBracketed(t *testing.T) {
	if idx := FindTopLevel(`"a:b" <c:d>: e`, ':'); idx != 11 {
		t.Errorf("FindTopLevel = %d, want 11", idx)
	}
	if idx := FindTopLevel(`no colon here`, ':'); idx != -1 {
		t.Errorf("FindTopLevel = %d, want -1", idx)
	}
}
