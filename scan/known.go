package scan

// service names from https://www.iana.org/assignments/service-names-port-numbers/service-names-port-numbers.csv
var knownPorts = map[int]string{
	7:     "echo",
	20:    "ftp-data",
	21:    "ftp",
	22:    "ssh",
	23:    "telnet",
	25:    "smtp",
	53:    "domain",
	67:    "bootps",
	69:    "tftp",
	79:    "finger",
	80:    "http",
	88:    "kerberos",
	110:   "pop3",
	111:   "sunrpc",
	119:   "nntp",
	123:   "ntp",
	135:   "epmap",
	139:   "netbios-ssn",
	143:   "imap",
	161:   "snmp",
	179:   "bgp",
	389:   "ldap",
	443:   "https",
	445:   "microsoft-ds",
	465:   "submissions",
	500:   "isakmp",
	514:   "shell",
	515:   "printer",
	548:   "afpovertcp",
	554:   "rtsp",
	587:   "submission",
	631:   "ipp",
	636:   "ldaps",
	873:   "rsync",
	989:   "ftps-data",
	990:   "ftps",
	993:   "imaps",
	995:   "pop3s",
	1433:  "ms-sql-s",
	1723:  "pptp",
	1883:  "mqtt",
	2049:  "nfs",
	2181:  "eforward",
	2375:  "docker",
	2376:  "docker-s",
	3306:  "mysql",
	3389:  "ms-wbt-server",
	5060:  "sip",
	5432:  "postgresql",
	5672:  "amqp",
	5900:  "rfb",
	6379:  "redis",
	6443:  "sun-sr-https",
	8080:  "http-alt",
	8443:  "pcsync-https",
	9100:  "pdl-datastream",
	9418:  "git",
	11211: "memcache",
	27017: "mongodb",
}
