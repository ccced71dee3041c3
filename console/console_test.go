package console

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedLines answers prompts from a fixed list and records the prompts shown.
type scriptedLines struct {
	answers []string
	prompts []string
	prompt  string
}

func (s *scriptedLines) SetPrompt(prompt string) { s.prompt = prompt }

func (s *scriptedLines) Readline() (string, error) {
	s.prompts = append(s.prompts, s.prompt)
	if len(s.answers) == 0 {
		return "", io.EOF
	}
	var answer = s.answers[0]
	s.answers = s.answers[1:]
	return answer, nil
}

func (s *scriptedLines) Close() error { return nil }

func TestConsole(t *testing.T) {
	var (
		noEnv  = func(string) (string, bool) { return "", false }
		newSut = func(answers ...string) (*Console, *scriptedLines, *bytes.Buffer) {
			var (
				lines = &scriptedLines{answers: answers}
				out   = &bytes.Buffer{}
			)
			return New(lines, nil, out).WithEnv(noEnv), lines, out
		}
	)

	t.Run("should prefer the environment over prompting", func(t *testing.T) {
		// Arrange
		var sut, lines, _ = newSut("typed")
		sut.WithEnv(func(name string) (string, bool) {
			if name == "CLIENT_NAME" {
				return "from env", true
			}
			return "", false
		})

		// Act
		var value, err = sut.Ask("CLIENT_NAME", "Enter client full name", "")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "from env", value)
		assert.Empty(t, lines.prompts)
	})

	t.Run("should take the default on empty input", func(t *testing.T) {
		// Arrange
		var sut, lines, _ = newSut("   ")

		// Act
		var value, err = sut.Ask("CLIENT_PLAN", "Enter client plan", "extra")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "extra", value)
		assert.Equal(t, []string{"Enter client plan [extra]: "}, lines.prompts)
	})

	t.Run("should return typed input trimmed", func(t *testing.T) {
		// Arrange
		var sut, _, _ = newSut("  pro  ")

		// Act
		var value, err = sut.Ask("", "Enter client plan", "extra")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "pro", value)
	})

	t.Run("should report aborted input", func(t *testing.T) {
		// Arrange
		var sut, _, _ = newSut()

		// Act
		var _, err = sut.Ask("", "Enter anything", "")

		// Assert
		assert.ErrorIs(t, err, ErrAborted)
	})

	t.Run("should ask again for a number", func(t *testing.T) {
		// Arrange
		var sut, lines, out = newSut("nine", "9.5")

		// Act
		var value, err = sut.AskFloat("", "Enter payment amount", 0)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 9.5, value)
		assert.Len(t, lines.prompts, 2)
		assert.Contains(t, out.String(), "not a number")
	})

	t.Run("should reject a non-numeric environment value", func(t *testing.T) {
		// Arrange
		var sut, _, _ = newSut()
		sut.WithEnv(func(string) (string, bool) { return "lots", true })

		// Act
		var _, err = sut.AskFloat("PAYMENT_AMOUNT", "Enter payment amount", 0)

		// Assert
		assert.ErrorContains(t, err, "PAYMENT_AMOUNT")
	})

	t.Run("should choose by one-based index", func(t *testing.T) {
		// Arrange
		var sut, _, out = newSut("0", "3", "2")

		// Act
		var index, err = sut.Choose("Choose a client", []string{"acme", "globex"})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 1, index)
		assert.Contains(t, out.String(), "1: acme")
		assert.Contains(t, out.String(), "2: globex")
	})

	t.Run("should not ask when there is one option", func(t *testing.T) {
		// Arrange
		var sut, lines, _ = newSut()

		// Act
		var index, err = sut.Choose("Choose a client", []string{"acme"})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 0, index)
		assert.Empty(t, lines.prompts)
	})

	t.Run("should confirm with a single key", func(t *testing.T) {
		var cases = []struct {
			key  rune
			want bool
		}{
			{'y', true},
			{'Y', true},
			{'n', false},
			{'\r', false},
		}

		for _, tc := range cases {
			t.Run(string(tc.key), func(t *testing.T) {
				// Arrange
				var (
					out = &bytes.Buffer{}
					sut = New(&scriptedLines{}, func() (rune, error) { return tc.key, nil }, out)
				)

				// Act
				var ok, err = sut.Confirm("Release lease?")

				// Assert
				require.NoError(t, err)
				assert.Equal(t, tc.want, ok)
				assert.True(t, strings.HasPrefix(out.String(), "Release lease? [y/N]"))
			})
		}
	})

	t.Run("should surface key reader failures", func(t *testing.T) {
		// Arrange
		var sut = New(&scriptedLines{}, func() (rune, error) { return 0, errors.New("no tty") }, &bytes.Buffer{})

		// Act
		var ok, err = sut.Confirm("Release lease?")

		// Assert
		assert.Error(t, err)
		assert.False(t, ok)
	})

	t.Run("should confirm from a line without a key reader", func(t *testing.T) {
		// Arrange
		var sut, _, _ = newSut("yes")

		// Act
		var ok, err = sut.Confirm("Release lease?")

		// Assert
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestTable(t *testing.T) {
	t.Run("should print headers and rows", func(t *testing.T) {
		// Arrange
		var out = &bytes.Buffer{}

		// Act
		Table(out, []string{"ID", "NAME"}, [][]string{{"1", "Acme Corp"}, {"2", "Globex"}})

		// Assert
		var lines = strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 3)
		assert.Contains(t, lines[0], "NAME")
		assert.Contains(t, lines[1], "Acme Corp")
		assert.Contains(t, lines[2], "Globex")
	})

	t.Run("should mark an empty table", func(t *testing.T) {
		// Arrange
		var out = &bytes.Buffer{}

		// Act
		Table(out, []string{"ID"}, nil)

		// Assert
		assert.Equal(t, "(none)\n", out.String())
	})

	t.Run("should print a record as name/value lines", func(t *testing.T) {
		// Arrange
		var out = &bytes.Buffer{}

		// Act
		Record(out, [][2]string{{"name", "Acme Corp"}, {"plan", "extra"}})

		// Assert
		assert.Contains(t, out.String(), "name:")
		assert.Contains(t, out.String(), "Acme Corp")
		assert.Contains(t, out.String(), "plan:")
	})
}

func TestFormatting(t *testing.T) {
	var now = time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "1,234.5", Money(1234.5))
	assert.Equal(t, "2024-02-10", Date(now))
	assert.Equal(t, "-", Date(time.Time{}))
	assert.Equal(t, "5 minutes ago", Ago(now.Add(-5*time.Minute), now))
	assert.Equal(t, "1.5 kB", Size(1500))
}
