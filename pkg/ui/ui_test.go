package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleOutput(t *testing.T) {
	var out, errOut bytes.Buffer
	c := NewConsole(&out, &errOut)

	c.Inline("fetching profile")
	c.Line("anna")
	c.Step("fetching ratings")
	c.Visiting("/user/feedback/anna")
	c.Notice("Got error 500 loading https://de.dawanda.com/x")
	c.Count(2)
	c.Progress("    fetching details %d/%d: %s", 1, 3, "101")
	c.Done(Tally{3, "products"}, Tally{2, "ratings"})
	c.Fail("LOGIN FAILED.")

	assert.Equal(t, "[*] fetching profile ... anna\n"+
		"\033[K[*] fetching ratings\n"+
		"\033[K    /user/feedback/anna ... \r"+
		"\033[KGot error 500 loading https://de.dawanda.com/x\n"+
		"\033[K    got 2\n"+
		"\033[K    fetching details 1/3: 101\r"+
		"\033[K[+] done [3 products] [2 ratings]\n", out.String())
	assert.Equal(t, "LOGIN FAILED.\n", errOut.String())
}

func TestConsoleDoneWithoutTallies(t *testing.T) {
	var out bytes.Buffer
	NewConsole(&out, &out).Done()
	assert.Equal(t, "\033[K[+] done\n", out.String())
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))
}

func TestPrompterCredentials(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompterFrom(strings.NewReader("anna\r\ns3cret pass\n"), &out)

	user, password, err := p.Credentials()
	require.NoError(t, err)
	assert.Equal(t, "anna", user)
	assert.Equal(t, "s3cret pass", password)
	assert.Equal(t, "DaWanda user: DaWanda password (not shown): ", out.String())
}

func TestPrompterHiddenPassword(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompterFrom(strings.NewReader("anna\n"), &out)
	p.readSecret = func() ([]byte, error) { return []byte("hidden"), nil }

	_, password, err := p.Credentials()
	require.NoError(t, err)
	assert.Equal(t, "hidden", password)
	assert.True(t, strings.HasSuffix(out.String(), "\n"))
}

func TestPrompterPasswordWithoutNewline(t *testing.T) {
	p := NewPrompterFrom(strings.NewReader("anna\npw"), &bytes.Buffer{})

	_, password, err := p.Credentials()
	require.NoError(t, err)
	assert.Equal(t, "pw", password)
}

func TestPrompterEOF(t *testing.T) {
	p := NewPrompterFrom(strings.NewReader(""), &bytes.Buffer{})

	_, _, err := p.Credentials()
	assert.Error(t, err)
}
