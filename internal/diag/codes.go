package diag

// Code is a stable identifier of an error kind, published as the diagnostic code.
type Code string

const (
	CodeParse            Code = "parse"
	CodeNotInScope       Code = "not-in-scope"
	CodeModuleNotFound   Code = "module-not-found"
	CodeTermination      Code = "termination"
	CodeDuplicateName    Code = "duplicate-name"
	CodeDuplicateImport  Code = "duplicate-import"
	CodeGoal             Code = "goal"
	CodeUnusedBinding    Code = "unused-binding"
	CodeMissingResult    Code = "missing-result-type"
	CodeLibraryIO        Code = "library-io"
	CodeLibraryManifest  Code = "library-manifest"
	CodeLibraryNotFound  Code = "library-not-found"
	CodeCyclicDependency Code = "cyclic-dependency"
)

func (c Code) String() string { return string(c) }
