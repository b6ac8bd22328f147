// Package cli implements the puppetdoc command line.
//
// Every command except version loads configuration through internal/config
// (defaults, puppetdoc.yaml, PUPPETDOC_* environment, then flags) and logs
// to stderr:
//
//	puppetdoc parse manifests/init.pp --format yaml
//	puppetdoc index /etc/puppetlabs/code/modules/apache
//	puppetdoc search /etc/puppetlabs/code/modules/apache "vhost ssl*" --kind defined_type
//	puppetdoc status /etc/puppetlabs/code/modules/apache
//	puppetdoc serve
package cli
