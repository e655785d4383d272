package builder

// Sense flags qualify a dependency's version comparison.
type Sense int32

const (
	SenseAny     Sense = 0
	SenseLess    Sense = 1 << 1
	SenseGreater Sense = 1 << 2
	SenseEqual   Sense = 1 << 3
	SensePrereq  Sense = 1 << 6
	SenseInterp  Sense = 1 << 8
	SenseRPMLib  Sense = 1 << 24
)

// Dependency is one requires, provides, conflicts or obsoletes entry.
type Dependency struct {
	Name    string
	Flags   Sense
	Version string
}

func Any(name string) Dependency { return Dependency{Name: name} }

func Less(name, version string) Dependency {
	return Dependency{Name: name, Flags: SenseLess, Version: version}
}

func LessEq(name, version string) Dependency {
	return Dependency{Name: name, Flags: SenseLess | SenseEqual, Version: version}
}

func Eq(name, version string) Dependency {
	return Dependency{Name: name, Flags: SenseEqual, Version: version}
}

func GreaterEq(name, version string) Dependency {
	return Dependency{Name: name, Flags: SenseGreater | SenseEqual, Version: version}
}

func Greater(name, version string) Dependency {
	return Dependency{Name: name, Flags: SenseGreater, Version: version}
}

func rpmlib(feature, version string) Dependency {
	return Dependency{Name: "rpmlib(" + feature + ")", Flags: SenseRPMLib | SenseLess | SenseEqual, Version: version}
}

func split(deps []Dependency) (names []string, flags []int32, versions []string) {
	for _, d := range deps {
		names = append(names, d.Name)
		flags = append(flags, int32(d.Flags))
		versions = append(versions, d.Version)
	}
	return names, flags, versions
}
