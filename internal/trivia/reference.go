package trivia

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/dukerupert/familytasks/internal/model"
)

// Signer derives question references. A reference commits to the family,
// the date and the whole question including its answer, so any change in
// the regenerated question makes an old reference stale.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

func (s *Signer) Ref(familyID int64, date model.Date, q Question) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(canonical(familyID, date, q)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares ref against the reference of q in constant time.
func (s *Signer) Verify(familyID int64, date model.Date, q Question, ref string) bool {
	want := s.Ref(familyID, date, q)
	return hmac.Equal([]byte(want), []byte(ref))
}

func canonical(familyID int64, date model.Date, q Question) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(familyID, 10))
	b.WriteByte('\n')
	b.WriteString(date.String())
	b.WriteByte('\n')
	b.WriteString(string(q.Source))
	b.WriteByte('\n')
	b.WriteString(q.Text)
	b.WriteByte('\n')
	b.WriteString(strings.Join(q.Choices, "\x1f"))
	b.WriteByte('\n')
	b.WriteString(strconv.Itoa(q.CorrectIndex))
	return b.String()
}

// seededRand returns a generator whose sequence depends only on the family,
// the date and the tier asking for it.
func seededRand(familyID int64, date model.Date, tier Source) *rand.Rand {
	sum := sha256.Sum256([]byte(strconv.FormatInt(familyID, 10) + "|" + date.String() + "|" + string(tier)))
	return rand.New(rand.NewPCG(binary.BigEndian.Uint64(sum[0:8]), binary.BigEndian.Uint64(sum[8:16])))
}

// sample returns up to n items of pool in random order. pool must already
// be in a stable order.
func sample(r *rand.Rand, pool []string, n int) []string {
	out := append([]string(nil), pool...)
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// withAnswer shuffles answer into distractors and returns the choices and
// the answer's index.
func withAnswer(r *rand.Rand, answer string, distractors []string) ([]string, int) {
	choices := append([]string{answer}, distractors...)
	r.Shuffle(len(choices), func(i, j int) { choices[i], choices[j] = choices[j], choices[i] })
	for i, c := range choices {
		if c == answer {
			return choices, i
		}
	}
	return choices, 0
}
