package flows

import "testing"

func testPolicy() Policy {
	return Policy{
		UsernameMinLength:     4,
		UsernameMaxLength:     30,
		PasswordMinLength:     8,
		PasswordRequireLower:  true,
		PasswordRequireUpper:  true,
		PasswordRequireDigit:  true,
		PasswordRequireSymbol: true,
	}
}

func validForm() Form {
	return Form{
		Username: "alice-w",
		Email:    "alice@example.com",
		Password: "Str0ng!pass",
		Name:     "Alice W",
	}
}

func fieldSet(errs []FieldError) map[string]int {
	out := make(map[string]int)
	for _, e := range errs {
		out[e.Field]++
	}
	return out
}

func TestValidateSignUpForm(t *testing.T) {
	cases := []struct {
		name       string
		mutate     func(*Form)
		wantFields map[string]int
	}{
		{
			name:       "valid form",
			mutate:     func(*Form) {},
			wantFields: map[string]int{},
		},
		{
			name:       "empty form",
			mutate:     func(f *Form) { *f = Form{} },
			wantFields: map[string]int{"username": 1, "email": 1, "password": 1, "name": 1},
		},
		{
			name:       "username too short",
			mutate:     func(f *Form) { f.Username = "abc" },
			wantFields: map[string]int{"username": 1},
		},
		{
			name:       "username too long",
			mutate:     func(f *Form) { f.Username = "abcdefghijklmnopqrstuvwxyz-abcdef" },
			wantFields: map[string]int{"username": 1},
		},
		{
			name:       "whitespace username rejected",
			mutate:     func(f *Form) { f.Username = "   " },
			wantFields: map[string]int{"username": 1},
		},
		{
			name:       "invalid email",
			mutate:     func(f *Form) { f.Email = "not-an-address" },
			wantFields: map[string]int{"email": 1},
		},
		{
			name:       "short password",
			mutate:     func(f *Form) { f.Password = "S1!a" },
			wantFields: map[string]int{"password": 1},
		},
		{
			name:   "password missing every class",
			mutate: func(f *Form) { f.Password = "aaaaaaaaaa" },
			// Upper, digit, and symbol are each reported separately.
			wantFields: map[string]int{"password": 3},
		},
		{
			name:       "password missing symbol only",
			mutate:     func(f *Form) { f.Password = "Str0ngpass" },
			wantFields: map[string]int{"password": 1},
		},
		{
			name:       "missing name",
			mutate:     func(f *Form) { f.Name = "" },
			wantFields: map[string]int{"name": 1},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			form := validForm()
			tc.mutate(&form)

			errs := ValidateSignUpForm(form, testPolicy())
			got := fieldSet(errs)
			if len(got) != len(tc.wantFields) {
				t.Fatalf("got fields %v, want %v", got, tc.wantFields)
			}
			for field, count := range tc.wantFields {
				if got[field] != count {
					t.Fatalf("field %s: got %d errors, want %d (all: %v)", field, got[field], count, errs)
				}
			}
		})
	}
}

func TestValidateSignUpFormRelaxedPolicy(t *testing.T) {
	policy := testPolicy()
	policy.PasswordRequireUpper = false
	policy.PasswordRequireDigit = false
	policy.PasswordRequireSymbol = false

	form := validForm()
	form.Password = "justlowercase"

	if errs := ValidateSignUpForm(form, policy); len(errs) != 0 {
		t.Fatalf("relaxed policy must accept the password, got %v", errs)
	}
}
