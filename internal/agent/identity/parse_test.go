package identity

import "testing"

func TestParse(t *testing.T) {
	t.Parallel()

	cases := []struct {
		msg  string
		want Claim
	}{
		{"I'm user id 5", ExplicitID(5)},
		{"i am user 12, show my list", ExplicitID(12)},
		{"my ID is 123", ExplicitID(123)},
		{"My user id is 9", ExplicitID(9)},
		{"user ID: 7", ExplicitID(7)},
		{"orders for user_id 42 please", ExplicitID(42)},
		{"show the shopping list for user 5", ExplicitID(5)},
		{"I'm Alice", NamedIntroduction("Alice")},
		{"Hi, I am Bob.", NamedIntroduction("Bob")},
		{"my name is Carla and I need shoes", NamedIntroduction("Carla")},
		{"I’m Dana", NamedIntroduction("Dana")},
		{"I'm Alice, my user id is 3", ExplicitID(3)},
		{"I'm looking for running shoes", Claim{}},
		{"I am interested in tents", Claim{}},
		{"I'm 25", Claim{}},
		{"I'm looking for running shoes, I'm Maria", NamedIntroduction("Maria")},
		{"Hi, I'm tired. I'm Pedro", NamedIntroduction("Pedro")},
		{"I'm sure I'm wondering about tents", Claim{}},
		{"I'm 25 and I'm Lucia", NamedIntroduction("Lucia")},
		{"I'm looking for tents. My name is Ines", NamedIntroduction("Ines")},
		{"show me hiking boots", Claim{}},
		{"", Claim{}},
	}

	for _, tc := range cases {
		if got := Parse(tc.msg); got != tc.want {
			t.Fatalf("Parse(%q) = %+v, want %+v", tc.msg, got, tc.want)
		}
	}
}

func TestParseUserIDPayload(t *testing.T) {
	t.Parallel()

	ok := map[string]int64{
		`5`:                       5,
		` "17" `:                  17,
		`{"user_id":8}`:           8,
		`[{"user_id":"21"}]`:      21,
		`[{"user_id":3,"x":"y"}]`: 3,
	}
	for in, want := range ok {
		got, err := ParseUserIDPayload([]byte(in))
		if err != nil || got != want {
			t.Fatalf("ParseUserIDPayload(%s) = %d, %v, want %d", in, got, err, want)
		}
	}

	bad := []string{``, `null`, `[]`, `"abc"`, `-4`, `{"id":2}`, `[{"name":"x"}]`, `1.5`}
	for _, in := range bad {
		if _, err := ParseUserIDPayload([]byte(in)); err == nil {
			t.Fatalf("ParseUserIDPayload(%s) expected error", in)
		}
	}
}
