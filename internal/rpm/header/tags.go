package header

import (
	"fmt"
	"sort"
)

// Tag identifies an entry within a header.
type Tag uint32

// Region tags. Each header carries one of these as its first entry; its
// 16-byte trailer records how many index entries the region spans.
const (
	TagHeaderSignatures Tag = 62
	TagHeaderImmutable  Tag = 63
	TagHeaderI18NTable  Tag = 100
)

// Signature header tags.
const (
	SigTagDSA             Tag = 267
	SigTagRSA             Tag = 268 // signature over the main header only
	SigTagSHA1            Tag = 269 // hex SHA1 of the main header
	SigTagLongSize        Tag = 270
	SigTagLongArchiveSize Tag = 271
	SigTagSHA256          Tag = 273
	SigTagSize            Tag = 1000 // main header + payload length
	SigTagPGP             Tag = 1002 // signature over main header + payload
	SigTagMD5             Tag = 1004 // MD5 of main header + payload
	SigTagGPG             Tag = 1005
	SigTagPayloadSize     Tag = 1007
	SigTagReservedSpace   Tag = 1008
)

// Main header tags.
const (
	TagName              Tag = 1000
	TagVersion           Tag = 1001
	TagRelease           Tag = 1002
	TagEpoch             Tag = 1003
	TagSummary           Tag = 1004
	TagDescription       Tag = 1005
	TagBuildTime         Tag = 1006
	TagBuildHost         Tag = 1007
	TagSize              Tag = 1009
	TagDistribution      Tag = 1010
	TagVendor            Tag = 1011
	TagLicense           Tag = 1014
	TagPackager          Tag = 1015
	TagGroup             Tag = 1016
	TagURL               Tag = 1020
	TagOS                Tag = 1021
	TagArch              Tag = 1022
	TagPreIn             Tag = 1023
	TagPostIn            Tag = 1024
	TagPreUn             Tag = 1025
	TagPostUn            Tag = 1026
	TagFileSizes         Tag = 1028
	TagFileModes         Tag = 1030
	TagFileRDevs         Tag = 1033
	TagFileMTimes        Tag = 1034
	TagFileDigests       Tag = 1035
	TagFileLinkTos       Tag = 1036
	TagFileFlags         Tag = 1037
	TagFileUserName      Tag = 1039
	TagFileGroupName     Tag = 1040
	TagSourceRPM         Tag = 1044
	TagFileVerifyFlags   Tag = 1045
	TagArchiveSize       Tag = 1046
	TagProvideName       Tag = 1047
	TagRequireFlags      Tag = 1048
	TagRequireName       Tag = 1049
	TagRequireVersion    Tag = 1050
	TagConflictFlags     Tag = 1053
	TagConflictName      Tag = 1054
	TagConflictVersion   Tag = 1055
	TagRPMVersion        Tag = 1064
	TagChangelogTime     Tag = 1080
	TagChangelogName     Tag = 1081
	TagChangelogText     Tag = 1082
	TagPreInProg         Tag = 1085
	TagPostInProg        Tag = 1086
	TagPreUnProg         Tag = 1087
	TagPostUnProg        Tag = 1088
	TagObsoleteName      Tag = 1090
	TagFileDevices       Tag = 1095
	TagFileInodes        Tag = 1096
	TagFileLangs         Tag = 1097
	TagProvideFlags      Tag = 1112
	TagProvideVersion    Tag = 1113
	TagObsoleteFlags     Tag = 1114
	TagObsoleteVersion   Tag = 1115
	TagDirIndexes        Tag = 1116
	TagBaseNames         Tag = 1117
	TagDirNames          Tag = 1118
	TagPayloadFormat     Tag = 1124
	TagPayloadCompressor Tag = 1125
	TagPayloadFlags      Tag = 1126
	TagFileDigestAlgo    Tag = 5011
	TagEncoding          Tag = 5062
	TagPayloadDigest     Tag = 5092
	TagPayloadDigestAlgo Tag = 5093
)

// TagInfo describes a recognised tag: its canonical type and, when fixed,
// its element count. Count 0 means variable arity.
type TagInfo struct {
	Tag   Tag
	Name  string
	Type  EntryType
	Count uint32
}

// Domain is a closed enumeration of recognised tags. The signature header
// and the main header share one codec and differ only in their Domain.
type Domain interface {
	Name() string
	RegionTag() Tag
	Lookup(t Tag) (TagInfo, bool)
	Tags() []TagInfo
}

type tagTable struct {
	name   string
	region Tag
	byTag  map[Tag]TagInfo
}

func newTagTable(name string, region Tag, infos ...TagInfo) *tagTable {
	tt := &tagTable{name: name, region: region, byTag: make(map[Tag]TagInfo, len(infos)+1)}
	tt.byTag[region] = TagInfo{Tag: region, Name: "HEADER_REGION", Type: TypeBin, Count: regionTrailerSize}
	for _, info := range infos {
		if _, dup := tt.byTag[info.Tag]; dup {
			panic(fmt.Sprintf("duplicate %s tag %d", name, info.Tag))
		}
		tt.byTag[info.Tag] = info
	}
	return tt
}

func (tt *tagTable) Name() string   { return tt.name }
func (tt *tagTable) RegionTag() Tag { return tt.region }

func (tt *tagTable) Lookup(t Tag) (TagInfo, bool) {
	info, ok := tt.byTag[t]
	return info, ok
}

func (tt *tagTable) Tags() []TagInfo {
	out := make([]TagInfo, 0, len(tt.byTag))
	for _, info := range tt.byTag {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out
}

// SignatureTags is the signature header domain.
var SignatureTags Domain = newTagTable("signature", TagHeaderSignatures,
	TagInfo{SigTagDSA, "DSA", TypeBin, 0},
	TagInfo{SigTagRSA, "RSA", TypeBin, 0},
	TagInfo{SigTagSHA1, "SHA1", TypeString, 1},
	TagInfo{SigTagLongSize, "LONGSIZE", TypeInt64, 1},
	TagInfo{SigTagLongArchiveSize, "LONGARCHIVESIZE", TypeInt64, 1},
	TagInfo{SigTagSHA256, "SHA256", TypeString, 1},
	TagInfo{SigTagSize, "SIZE", TypeInt32, 1},
	TagInfo{SigTagPGP, "PGP", TypeBin, 0},
	TagInfo{SigTagMD5, "MD5", TypeBin, 16},
	TagInfo{SigTagGPG, "GPG", TypeBin, 0},
	TagInfo{SigTagPayloadSize, "PAYLOADSIZE", TypeInt32, 1},
	TagInfo{SigTagReservedSpace, "RESERVEDSPACE", TypeBin, 0},
)

// MainTags is the main (package metadata) header domain.
var MainTags Domain = newTagTable("main", TagHeaderImmutable,
	TagInfo{TagHeaderI18NTable, "HEADERI18NTABLE", TypeStringArray, 0},
	TagInfo{TagName, "NAME", TypeString, 1},
	TagInfo{TagVersion, "VERSION", TypeString, 1},
	TagInfo{TagRelease, "RELEASE", TypeString, 1},
	TagInfo{TagEpoch, "EPOCH", TypeInt32, 1},
	TagInfo{TagSummary, "SUMMARY", TypeI18NString, 0},
	TagInfo{TagDescription, "DESCRIPTION", TypeI18NString, 0},
	TagInfo{TagBuildTime, "BUILDTIME", TypeInt32, 1},
	TagInfo{TagBuildHost, "BUILDHOST", TypeString, 1},
	TagInfo{TagSize, "SIZE", TypeInt32, 1},
	TagInfo{TagDistribution, "DISTRIBUTION", TypeString, 1},
	TagInfo{TagVendor, "VENDOR", TypeString, 1},
	TagInfo{TagLicense, "LICENSE", TypeString, 1},
	TagInfo{TagPackager, "PACKAGER", TypeString, 1},
	TagInfo{TagGroup, "GROUP", TypeI18NString, 0},
	TagInfo{TagURL, "URL", TypeString, 1},
	TagInfo{TagOS, "OS", TypeString, 1},
	TagInfo{TagArch, "ARCH", TypeString, 1},
	TagInfo{TagPreIn, "PREIN", TypeString, 1},
	TagInfo{TagPostIn, "POSTIN", TypeString, 1},
	TagInfo{TagPreUn, "PREUN", TypeString, 1},
	TagInfo{TagPostUn, "POSTUN", TypeString, 1},
	TagInfo{TagFileSizes, "FILESIZES", TypeInt32, 0},
	TagInfo{TagFileModes, "FILEMODES", TypeInt16, 0},
	TagInfo{TagFileRDevs, "FILERDEVS", TypeInt16, 0},
	TagInfo{TagFileMTimes, "FILEMTIMES", TypeInt32, 0},
	TagInfo{TagFileDigests, "FILEDIGESTS", TypeStringArray, 0},
	TagInfo{TagFileLinkTos, "FILELINKTOS", TypeStringArray, 0},
	TagInfo{TagFileFlags, "FILEFLAGS", TypeInt32, 0},
	TagInfo{TagFileUserName, "FILEUSERNAME", TypeStringArray, 0},
	TagInfo{TagFileGroupName, "FILEGROUPNAME", TypeStringArray, 0},
	TagInfo{TagSourceRPM, "SOURCERPM", TypeString, 1},
	TagInfo{TagFileVerifyFlags, "FILEVERIFYFLAGS", TypeInt32, 0},
	TagInfo{TagArchiveSize, "ARCHIVESIZE", TypeInt32, 1},
	TagInfo{TagProvideName, "PROVIDENAME", TypeStringArray, 0},
	TagInfo{TagRequireFlags, "REQUIREFLAGS", TypeInt32, 0},
	TagInfo{TagRequireName, "REQUIRENAME", TypeStringArray, 0},
	TagInfo{TagRequireVersion, "REQUIREVERSION", TypeStringArray, 0},
	TagInfo{TagConflictFlags, "CONFLICTFLAGS", TypeInt32, 0},
	TagInfo{TagConflictName, "CONFLICTNAME", TypeStringArray, 0},
	TagInfo{TagConflictVersion, "CONFLICTVERSION", TypeStringArray, 0},
	TagInfo{TagRPMVersion, "RPMVERSION", TypeString, 1},
	TagInfo{TagChangelogTime, "CHANGELOGTIME", TypeInt32, 0},
	TagInfo{TagChangelogName, "CHANGELOGNAME", TypeStringArray, 0},
	TagInfo{TagChangelogText, "CHANGELOGTEXT", TypeStringArray, 0},
	TagInfo{TagPreInProg, "PREINPROG", TypeString, 0},
	TagInfo{TagPostInProg, "POSTINPROG", TypeString, 0},
	TagInfo{TagPreUnProg, "PREUNPROG", TypeString, 0},
	TagInfo{TagPostUnProg, "POSTUNPROG", TypeString, 0},
	TagInfo{TagObsoleteName, "OBSOLETENAME", TypeStringArray, 0},
	TagInfo{TagFileDevices, "FILEDEVICES", TypeInt32, 0},
	TagInfo{TagFileInodes, "FILEINODES", TypeInt32, 0},
	TagInfo{TagFileLangs, "FILELANGS", TypeStringArray, 0},
	TagInfo{TagProvideFlags, "PROVIDEFLAGS", TypeInt32, 0},
	TagInfo{TagProvideVersion, "PROVIDEVERSION", TypeStringArray, 0},
	TagInfo{TagObsoleteFlags, "OBSOLETEFLAGS", TypeInt32, 0},
	TagInfo{TagObsoleteVersion, "OBSOLETEVERSION", TypeStringArray, 0},
	TagInfo{TagDirIndexes, "DIRINDEXES", TypeInt32, 0},
	TagInfo{TagBaseNames, "BASENAMES", TypeStringArray, 0},
	TagInfo{TagDirNames, "DIRNAMES", TypeStringArray, 0},
	TagInfo{TagPayloadFormat, "PAYLOADFORMAT", TypeString, 1},
	TagInfo{TagPayloadCompressor, "PAYLOADCOMPRESSOR", TypeString, 1},
	TagInfo{TagPayloadFlags, "PAYLOADFLAGS", TypeString, 1},
	TagInfo{TagFileDigestAlgo, "FILEDIGESTALGO", TypeInt32, 1},
	TagInfo{TagEncoding, "ENCODING", TypeString, 1},
	TagInfo{TagPayloadDigest, "PAYLOADDIGEST", TypeStringArray, 0},
	TagInfo{TagPayloadDigestAlgo, "PAYLOADDIGESTALGO", TypeInt32, 1},
)

// NameOf returns the recognised name of t in d, or a numeric placeholder.
func NameOf(d Domain, t Tag) string {
	if info, ok := d.Lookup(t); ok {
		return info.Name
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint32(t))
}
