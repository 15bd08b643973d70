package permdb

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/filesaga/userpath"
)

// MasterEntry is the authoritative record of a file.
type MasterEntry struct {
	Path  userpath.Path
	Read  bool
	Write bool
	// Users holds every user with access to the file, including the owner.
	Users []string
	// DeleteTime is the pending delete mark. Zero if the file is not marked.
	DeleteTime time.Time
}

// MarkedForDelete reports whether the entry carries a delete mark.
func (e MasterEntry) MarkedForDelete() bool {
	return !e.DeleteTime.IsZero()
}

// errCorrupted is the root of every decode failure.
var errCorrupted = errors.New("corrupted master entry")

// decodeMasterEntry maps a raw item into a MasterEntry. Every attribute is
// type checked; a mismatch is never defaulted.
func decodeMasterEntry(p userpath.Path, item map[string]types.AttributeValue) (MasterEntry, error) {
	read, err := decodeBool(item, AttrRead)
	if err != nil {
		return MasterEntry{}, err
	}

	write, err := decodeBool(item, AttrWrite)
	if err != nil {
		return MasterEntry{}, err
	}

	users, err := decodeUsers(item)
	if err != nil {
		return MasterEntry{}, err
	}

	deleteTime, err := decodeDeleteTime(item)
	if err != nil {
		return MasterEntry{}, err
	}

	return MasterEntry{
		Path:       p,
		Read:       read,
		Write:      write,
		Users:      users,
		DeleteTime: deleteTime,
	}, nil
}

func decodeBool(item map[string]types.AttributeValue, name string) (bool, error) {
	av, ok := item[name]
	if !ok {
		return false, fmt.Errorf("%w: missing attribute %q", errCorrupted, name)
	}

	b, ok := av.(*types.AttributeValueMemberBOOL)
	if !ok {
		return false, fmt.Errorf("%w: attribute %q: expected BOOL, got %s", errCorrupted, name, typeName(av))
	}

	return b.Value, nil
}

func decodeUsers(item map[string]types.AttributeValue) ([]string, error) {
	av, ok := item[AttrUsers]
	if !ok {
		return nil, fmt.Errorf("%w: missing attribute %q", errCorrupted, AttrUsers)
	}

	var users []string

	switch v := av.(type) {
	case *types.AttributeValueMemberSS:
		users = append(users, v.Value...)
	case *types.AttributeValueMemberL:
		users = make([]string, 0, len(v.Value))
		for i, elem := range v.Value {
			s, ok := elem.(*types.AttributeValueMemberS)
			if !ok {
				return nil, fmt.Errorf("%w: attribute %q: element %d: expected S, got %s", errCorrupted, AttrUsers, i, typeName(elem))
			}
			users = append(users, s.Value)
		}
	default:
		return nil, fmt.Errorf("%w: attribute %q: expected SS, got %s", errCorrupted, AttrUsers, typeName(av))
	}

	if len(users) == 0 {
		return nil, fmt.Errorf("%w: attribute %q is empty", errCorrupted, AttrUsers)
	}

	for _, u := range users {
		if u == "" {
			return nil, fmt.Errorf("%w: attribute %q contains an empty user", errCorrupted, AttrUsers)
		}
	}

	return users, nil
}

// Delete marks must fit a nanosecond Unix timestamp, i.e. years 1678 to 2262.
const (
	minDeleteTimeSecs = float64(math.MinInt64 / int64(time.Second))
	maxDeleteTimeSecs = float64(math.MaxInt64 / int64(time.Second))
)

// decodeDeleteTime parses the optional delete mark, stored in seconds since epoch.
func decodeDeleteTime(item map[string]types.AttributeValue) (time.Time, error) {
	av, ok := item[AttrDeleteTime]
	if !ok {
		return time.Time{}, nil
	}

	var raw string

	switch v := av.(type) {
	case *types.AttributeValueMemberN:
		raw = v.Value
	case *types.AttributeValueMemberS:
		raw = v.Value
	case *types.AttributeValueMemberNULL:
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("%w: attribute %q: expected N, got %s", errCorrupted, AttrDeleteTime, typeName(av))
	}

	secs, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return time.Time{}, fmt.Errorf("%w: attribute %q: invalid value %q", errCorrupted, AttrDeleteTime, raw)
	}
	if secs < minDeleteTimeSecs || secs > maxDeleteTimeSecs {
		return time.Time{}, fmt.Errorf("%w: attribute %q: value %q out of range", errCorrupted, AttrDeleteTime, raw)
	}

	whole, frac := math.Modf(secs)

	return time.Unix(int64(whole), int64(frac*float64(time.Second))).UTC(), nil
}

func typeName(av types.AttributeValue) string {
	switch av.(type) {
	case *types.AttributeValueMemberS:
		return "S"
	case *types.AttributeValueMemberN:
		return "N"
	case *types.AttributeValueMemberB:
		return "B"
	case *types.AttributeValueMemberBOOL:
		return "BOOL"
	case *types.AttributeValueMemberNULL:
		return "NULL"
	case *types.AttributeValueMemberSS:
		return "SS"
	case *types.AttributeValueMemberNS:
		return "NS"
	case *types.AttributeValueMemberBS:
		return "BS"
	case *types.AttributeValueMemberL:
		return "L"
	case *types.AttributeValueMemberM:
		return "M"
	default:
		return fmt.Sprintf("%T", av)
	}
}

// describeItem renders an item for server-side logs.
func describeItem(item map[string]types.AttributeValue) string {
	names := make([]string, 0, len(item))
	for name := range item {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteByte('{')
	for i, name := range names {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s: %s", name, describeValue(item[name]))
	}
	sb.WriteByte('}')

	return sb.String()
}

func describeValue(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return strconv.Quote(v.Value)
	case *types.AttributeValueMemberN:
		return v.Value
	case *types.AttributeValueMemberBOOL:
		return strconv.FormatBool(v.Value)
	case *types.AttributeValueMemberNULL:
		return "null"
	case *types.AttributeValueMemberSS:
		return fmt.Sprintf("SS%q", v.Value)
	case *types.AttributeValueMemberNS:
		return fmt.Sprintf("NS%v", v.Value)
	case *types.AttributeValueMemberL:
		parts := make([]string, len(v.Value))
		for i, elem := range v.Value {
			parts[i] = describeValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *types.AttributeValueMemberM:
		return describeItem(v.Value)
	default:
		return typeName(av)
	}
}
