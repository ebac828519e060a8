package verb

import (
	"math"
	"strconv"
	"strings"

	"github.com/roach88/csc/internal/ir"
)

func buildSwitchProfile(args ir.IRObject) (Intent, error) {
	name, err := stringArg("switch_profile", "name", args["name"])
	if err != nil {
		return nil, err
	}
	return SwitchProfile{Name: name}, nil
}

func buildApplyPolicy(args ir.IRObject) (Intent, error) {
	name, err := stringArg("apply_policy", "name", args["name"])
	if err != nil {
		return nil, err
	}
	return ApplyPolicy{Name: name}, nil
}

func buildPress(args ir.IRObject) (Intent, error) {
	bet, units, err := betAndUnits("press", args)
	if err != nil {
		return nil, err
	}
	return Press{Bet: bet, Units: units}, nil
}

func buildRegress(args ir.IRObject) (Intent, error) {
	bet, units, err := betAndUnits("regress", args)
	if err != nil {
		return nil, err
	}
	return Regress{Bet: bet, Units: units}, nil
}

func betAndUnits(verb string, args ir.IRObject) (string, int64, error) {
	bet, err := stringArg(verb, "bet", args["bet"])
	if err != nil {
		return "", 0, err
	}
	units := int64(1)
	if raw, ok := args["units"]; ok {
		units, err = intArg(verb, "units", raw)
		if err != nil {
			return "", 0, err
		}
	}
	return bet, units, nil
}

// stringArg renders bare tokens and numbers as strings: press(bet=6) names
// the six.
func stringArg(verb, key string, v ir.IRValue) (string, error) {
	switch val := v.(type) {
	case ir.IRString:
		if val == "" {
			return "", &ArgError{Kind: ArgInvalid, Verb: verb, Arg: key, Message: "must not be empty"}
		}
		return string(val), nil
	case ir.IRInt:
		return strconv.FormatInt(int64(val), 10), nil
	case ir.IRFloat:
		s, err := ir.FormatFloat(float64(val))
		if err != nil {
			return "", &ArgError{Kind: ArgInvalid, Verb: verb, Arg: key, Message: err.Error()}
		}
		return s, nil
	case nil:
		return "", &ArgError{Kind: ArgMissing, Verb: verb, Arg: key, Message: "required argument is missing"}
	default:
		return "", &ArgError{Kind: ArgInvalid, Verb: verb, Arg: key, Message: "expected a name or number, got " + ir.TypeName(v)}
	}
}

// intArg coerces to an integer. Floats truncate toward zero; numeric strings
// parse.
func intArg(verb, key string, v ir.IRValue) (int64, error) {
	switch val := v.(type) {
	case ir.IRInt:
		return int64(val), nil
	case ir.IRFloat:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
			return 0, &ArgError{Kind: ArgInvalid, Verb: verb, Arg: key, Message: "number out of range"}
		}
		return int64(f), nil
	case ir.IRString:
		s := strings.TrimSpace(string(val))
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return intArg(verb, key, ir.IRFloat(f))
		}
		return 0, &ArgError{Kind: ArgInvalid, Verb: verb, Arg: key, Message: "expected an integer, got " + strconv.Quote(string(val))}
	default:
		return 0, &ArgError{Kind: ArgInvalid, Verb: verb, Arg: key, Message: "expected an integer, got " + ir.TypeName(v)}
	}
}
