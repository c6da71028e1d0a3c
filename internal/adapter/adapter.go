package adapter

// OutputFormat selects how the remote sweep reports its findings
type OutputFormat string

const (
	// OutputGrepable is nmap's one-line-per-host format (-oG -)
	OutputGrepable OutputFormat = "grepable"
	// OutputXML is nmap's XML report (-oX -), parsed with the nmap library
	OutputXML OutputFormat = "xml"
)

// Credentials is a username/password pair for SSH based transports
type Credentials struct {
	Username string
	Password string
}
