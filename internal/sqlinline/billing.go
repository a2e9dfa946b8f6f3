package sqlinline

const QListUpgradesByUser = `--sql f48748a8-438d-4d57-9a68-9a1a09b378c1
select session_id, created_at
from billing_upgrades
where user_id = $1::uuid
order by created_at desc;
`
